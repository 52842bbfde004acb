// Package contacts reconstructs playlist-curator contact records from the text of a tabular PDF.
//
// The PDF is converted to plain text upstream; what arrives here is a ragged stream of lines in
// which the columns Playlist Name, Curator, Genres, Followers and Best Way To Contact have been
// flattened one cell per line, interleaved with repeated page headers and blank cells.
//
// [Parse] walks the lines once. An email address anchors a record; fields seen before the anchor
// are staged in a per-call accumulator and copied onto the record when the anchor appears, and a
// bounded backward scan from the anchor recovers the curator and playlist name that sit above the
// Spotify link. Lines that match no rule are dropped. Parsing never fails.
//
// [Directory] wraps the parsed records with the lookups the rest of the toolkit relies on, and
// [ParseFile] / [ReadLines] handle the file side.
package contacts
