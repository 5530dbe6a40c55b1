// Package monitor renders reconstructed clusters for offline inspection:
// PNG plots via gonum/plot and an interactive HTML scatter via go-echarts.
package monitor
