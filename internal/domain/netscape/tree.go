package netscape

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// link is a raw anchor pulled out of the markup.
type link struct {
	href    string
	title   string
	icon    string
	addDate string
}

// folderNode is one normalized folder with its direct links and subfolders.
// The root node has an empty name and holds top-level links.
type folderNode struct {
	name            string
	addDate         string
	personalToolbar bool
	links           []link
	children        []*folderNode
}

// buildTree normalizes a DL list into a folder tree. Content lists consumed
// through sibling lookahead are tracked so a DL is never walked twice.
func buildTree(list *goquery.Selection) *folderNode {
	root := &folderNode{}
	consumed := make(map[*html.Node]bool)
	fillNode(root, list, consumed)
	return root
}

func fillNode(node *folderNode, list *goquery.Selection, consumed map[*html.Node]bool) {
	list.Children().Each(func(_ int, item *goquery.Selection) {
		switch goquery.NodeName(item) {
		case "dt":
			head := item.Children().First()
			switch goquery.NodeName(head) {
			case "h3":
				child := &folderNode{
					name:            trimText(head),
					addDate:         head.AttrOr("add_date", ""),
					personalToolbar: head.AttrOr("personal_toolbar_folder", "") == "true",
				}
				node.children = append(node.children, child)

				if content := findContentList(item, consumed); content != nil {
					fillNode(child, content, consumed)
				}
			case "a":
				href := head.AttrOr("href", "")
				title := trimText(head)
				if href == "" || title == "" {
					return
				}
				node.links = append(node.links, link{
					href:    href,
					title:   title,
					icon:    head.AttrOr("icon", ""),
					addDate: head.AttrOr("add_date", ""),
				})
			}
		case "dl":
			// Sibling content list; reached through lookahead from its
			// folder's DT, or stray markup to be ignored.
		}
	})
}

// findContentList locates a folder's content DL: nested inside the DT in
// most browser exports, or the next sibling DL in the Edge dialect.
func findContentList(dt *goquery.Selection, consumed map[*html.Node]bool) *goquery.Selection {
	if nested := dt.Find("dl").First(); nested.Length() > 0 {
		markConsumed(nested, consumed)
		return nested
	}

	var found *goquery.Selection
	dt.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		if goquery.NodeName(sib) != "dl" {
			return true
		}
		if n := sib.Get(0); consumed[n] {
			return true
		}
		found = sib
		return false
	})
	if found != nil {
		markConsumed(found, consumed)
	}
	return found
}

func markConsumed(list *goquery.Selection, consumed map[*html.Node]bool) {
	if n := list.Get(0); n != nil {
		consumed[n] = true
	}
}

func trimText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// parseAddDate converts a Unix-epoch ADD_DATE attribute to RFC 3339, falling
// back to now when absent or malformed.
func parseAddDate(raw string, now time.Time) string {
	if raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC().Format(time.RFC3339)
		}
	}
	return now.UTC().Format(time.RFC3339)
}
