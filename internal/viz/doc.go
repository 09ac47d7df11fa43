// Package viz renders calibration runs for the terminal.
//
//   - [Summary]: status, settings and the per-parameter solution table
//   - [ConvergencePlot]: log10 error per iteration
//   - [DampingPlot]: damping factor per iteration
//
// Styles are shared with the replay viewer in package tui.
package viz
