// Package citation checks whether file citations embedded in knowledge
// entries still match the code they were written against.
//
// A citation carries a path, optionally suffixed with ":line" or
// ":start-end", and the hash of the whole file at authoring time. The hash
// is the sha256 of the trimmed file content, hex encoded and cut to 12
// characters. Validate classifies a citation as valid, changed or missing.
package citation
