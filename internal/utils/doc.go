// Package utils holds small helpers shared by nodeflow internals: JSON over
// HTTP with bearer tokens, a Server-Sent Events reader, lenient JSON decoding
// backed by jsonrepair, and string helpers for log output.
package utils
