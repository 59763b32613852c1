// Package plot renders simulator output grids: PNG heatmaps and line plots
// with gonum/plot, and interactive HTML with go-echarts.
//
// Every function reads the output files of one run and writes an image or
// page; nothing feeds back into the key tree or the runner.
package plot
