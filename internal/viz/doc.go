// Package viz renders simulation output in the terminal: asciigraph
// trajectory and contact-force plots, a braille canvas for side-view scene
// sketches, and a bubbletea live view.
package viz
