// Command tubescribe transcribes YouTube videos into fixed-width, deep-linked
// transcript windows.
//
// "tubescribe serve" runs the HTTP API. The remaining commands run the same
// pipeline in-process for one-off use and print tables, JSON, or YAML
// depending on --output.
package main
