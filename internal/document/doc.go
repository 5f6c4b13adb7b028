// Package document extracts the readable paragraphs of a text or markdown
// file.
package document
