// Package cache stores synthesized speech so a paragraph is only rendered
// by the synthesizer once. A small in-memory LRU sits in front of a
// zstd-compressed disk cache that survives restarts.
package cache
