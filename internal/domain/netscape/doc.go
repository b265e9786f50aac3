// Package netscape converts between the Netscape bookmark HTML format and
// the in-memory bookmark/group collections.
//
// The format nests folders and links as flat DT siblings inside DL lists, a
// folder's content list appearing either inside its DT or as a later
// sibling. The parser first normalizes that markup into a proper folder
// tree, then walks the tree to attribute every link to its innermost
// enclosing folder.
package netscape
