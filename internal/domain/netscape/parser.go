package netscape

import (
	"io"
	"math/rand/v2"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marksyncy/backend/internal/shared/id"
	"github.com/marksyncy/backend/internal/shared/types"
)

// ImportedGroupName is the group synthesized when a file carries bookmarks
// but no folders, so imports never land in the literal default group.
const ImportedGroupName = "Imported"

// Result holds the collections produced by a parse.
type Result struct {
	Bookmarks []types.Bookmark
	Folders   []types.Group
}

// groupColors is the palette cycled for imported folders.
var groupColors = []string{
	"#667eea", "#f59e0b", "#10b981", "#ef4444", "#8b5cf6",
	"#06b6d4", "#84cc16", "#f97316", "#ec4899", "#14b8a6",
}

func randomColor() string {
	return groupColors[rand.IntN(len(groupColors))]
}

// Parse reads a Netscape bookmark document and reconstructs its folder
// hierarchy. Documents with no DL list yield an empty Result; input that
// cannot be parsed as HTML yields a ParseError.
func Parse(r io.Reader) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	result := &Result{
		Bookmarks: []types.Bookmark{},
		Folders:   []types.Group{},
	}

	list := doc.Find("dl").First()
	if list.Length() == 0 {
		return result, nil
	}

	root := buildTree(list)
	now := time.Now()

	walker := &treeWalker{result: result, now: now}
	walker.walk(root, types.DefaultGroupID)

	// A flat file with no folders still gets its own group so the import is
	// visible as a unit.
	if len(result.Folders) == 0 && len(result.Bookmarks) > 0 {
		imported := types.Group{
			ID:           id.NewGroupID(),
			Name:         ImportedGroupName,
			Color:        randomColor(),
			CreatedAt:    now.UTC().Format(time.RFC3339),
			ParentFolder: types.DefaultGroupID,
		}
		result.Folders = append(result.Folders, imported)
		for i := range result.Bookmarks {
			result.Bookmarks[i].Group = imported.ID
		}
	}

	return result, nil
}

type treeWalker struct {
	result *Result
	now    time.Time
}

// walk emits the folder tree depth-first. Every link is attributed to the
// group whose id is on top of the enclosing-folder chain at visit time, and
// every folder records the enclosing id as its parentFolder.
func (w *treeWalker) walk(node *folderNode, current string) {
	for _, l := range node.links {
		w.result.Bookmarks = append(w.result.Bookmarks, types.Bookmark{
			ID:        id.NewBookmarkID(),
			URL:       l.href,
			Title:     l.title,
			Favicon:   l.icon,
			Timestamp: parseAddDate(l.addDate, w.now),
			Group:     current,
		})
	}

	for _, child := range node.children {
		group := types.Group{
			ID:              id.NewGroupID(),
			Name:            child.name,
			Color:           randomColor(),
			CreatedAt:       parseAddDate(child.addDate, w.now),
			ParentFolder:    current,
			PersonalToolbar: child.personalToolbar,
		}
		w.result.Folders = append(w.result.Folders, group)
		w.walk(child, group.ID)
	}
}
