package netscape

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/marksyncy/backend/internal/shared/types"
)

const exportHeader = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<!-- This is an automatically generated file.
     It will be read and overwritten.
     DO NOT EDIT! -->
<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
`

// ExportFilename returns the download name for an export taken at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("bookmarks_%s.html", t.Format("2006-01-02"))
}

// Export serializes the collections back into Netscape HTML. Groups whose
// declared parent is missing are treated as roots; hierarchy is advisory
// metadata, not an enforced invariant.
func Export(bookmarks []types.Bookmark, groups []types.Group) string {
	now := time.Now()

	type exportNode struct {
		group    types.Group
		children []*exportNode
	}

	nodes := make(map[string]*exportNode, len(groups))
	for _, g := range groups {
		if g.ID == types.DefaultGroupID {
			continue
		}
		nodes[g.ID] = &exportNode{group: g}
	}

	var roots []*exportNode
	for _, g := range groups {
		if g.ID == types.DefaultGroupID {
			continue
		}
		n := nodes[g.ID]
		if g.ParentFolder == "" || g.ParentFolder == types.DefaultGroupID {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[g.ParentFolder]
		if !ok {
			roots = append(roots, n)
			continue
		}
		parent.children = append(parent.children, n)
	}

	byGroup := make(map[string][]types.Bookmark)
	for _, b := range bookmarks {
		key := b.Group
		if key == "" {
			key = types.DefaultGroupID
		}
		byGroup[key] = append(byGroup[key], b)
	}

	var sb strings.Builder
	sb.WriteString(exportHeader)

	writeBookmark := func(b types.Bookmark, indent string) {
		sb.WriteString(indent)
		sb.WriteString(`    <DT><A HREF="`)
		sb.WriteString(html.EscapeString(b.URL))
		sb.WriteString(`" ADD_DATE="`)
		sb.WriteString(epochString(b.Timestamp, now))
		sb.WriteString(`"`)
		if b.Favicon != "" {
			sb.WriteString(` ICON="`)
			sb.WriteString(html.EscapeString(b.Favicon))
			sb.WriteString(`"`)
		}
		sb.WriteString(`>`)
		sb.WriteString(html.EscapeString(b.Title))
		sb.WriteString("</A>\n")
	}

	var writeFolder func(n *exportNode, depth int)
	writeFolder = func(n *exportNode, depth int) {
		indent := strings.Repeat("    ", depth)
		stamp := epochString(n.group.CreatedAt, now)

		sb.WriteString(indent)
		sb.WriteString(`<DT><H3 ADD_DATE="`)
		sb.WriteString(stamp)
		sb.WriteString(`" LAST_MODIFIED="`)
		sb.WriteString(stamp)
		sb.WriteString(`"`)
		if n.group.PersonalToolbar {
			sb.WriteString(` PERSONAL_TOOLBAR_FOLDER="true"`)
		}
		sb.WriteString(`>`)
		sb.WriteString(html.EscapeString(n.group.Name))
		sb.WriteString("</H3>\n")
		sb.WriteString(indent)
		sb.WriteString("<DL><p>\n")

		for _, b := range byGroup[n.group.ID] {
			writeBookmark(b, indent)
		}
		for _, child := range n.children {
			writeFolder(child, depth+1)
		}

		sb.WriteString(indent)
		sb.WriteString("</DL><p>\n")
	}

	// Toolbar folder leads, matching how browsers order their own exports.
	for _, n := range roots {
		if n.group.PersonalToolbar {
			writeFolder(n, 0)
		}
	}
	for _, b := range byGroup[types.DefaultGroupID] {
		writeBookmark(b, "")
	}
	for _, n := range roots {
		if !n.group.PersonalToolbar {
			writeFolder(n, 0)
		}
	}

	sb.WriteString("</DL><p>\n")
	return sb.String()
}

// epochString converts an RFC 3339 timestamp to Unix-epoch seconds, falling
// back to now for missing or malformed values.
func epochString(stamp string, now time.Time) string {
	if stamp != "" {
		if t, err := time.Parse(time.RFC3339, stamp); err == nil {
			return fmt.Sprintf("%d", t.Unix())
		}
	}
	return fmt.Sprintf("%d", now.Unix())
}
