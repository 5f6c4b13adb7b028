// Package tts turns paragraphs into speech with the piper executable and
// estimates when each word is spoken so a reader can follow along.
package tts
