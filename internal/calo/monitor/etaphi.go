package monitor

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/topocluster/internal/calo/pipeline"
	"github.com/banshee-data/topocluster/internal/monitoring"
)

// Output file names written by GeneratePlots.
const (
	EtaPhiPNG    = "clusters_eta_phi.png"
	EnergyPNG    = "clusters_energy.png"
	EtaPhiHTML   = "clusters_eta_phi.html"
	energyBins   = 40
	viridisSteps = 10
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// ClusterPoint is one recorded cluster.
type ClusterPoint struct {
	EventID int64
	Eta     float64
	Phi     float64
	Energy  float64
	NumHits int
}

// EtaPhiPlotter accumulates cluster positions in (eta, phi) and writes
// summary plots after a run. It implements pipeline.Sink.
type EtaPhiPlotter struct {
	mu        sync.Mutex
	outputDir string
	points    []ClusterPoint
	skipped   int
}

var _ pipeline.Sink = (*EtaPhiPlotter)(nil)

// NewEtaPhiPlotter creates outputDir if needed and returns an empty plotter.
func NewEtaPhiPlotter(outputDir string) (*EtaPhiPlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &EtaPhiPlotter{outputDir: outputDir}, nil
}

// WriteResult records every cluster with a finite direction.
func (p *EtaPhiPlotter) WriteResult(_ context.Context, res pipeline.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cl := range res.Clusters {
		eta := cl.Eta()
		if cl.Degenerate || math.IsInf(eta, 0) || math.IsNaN(eta) {
			p.skipped++
			continue
		}
		p.points = append(p.points, ClusterPoint{
			EventID: res.EventID,
			Eta:     eta,
			Phi:     cl.IntrinsicPhi,
			Energy:  cl.Energy,
			NumHits: cl.NumHits,
		})
	}
	return nil
}

// Points returns a copy of the recorded clusters.
func (p *EtaPhiPlotter) Points() []ClusterPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ClusterPoint, len(p.points))
	copy(out, p.points)
	return out
}

// OutputDir returns the directory plots are written to.
func (p *EtaPhiPlotter) OutputDir() string {
	return p.outputDir
}

// GeneratePlots writes the PNG and HTML outputs and returns their paths.
// Nothing is written when no clusters were recorded.
func (p *EtaPhiPlotter) GeneratePlots() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.skipped > 0 {
		monitoring.Opsf("%d clusters without a finite direction left out of plots", p.skipped)
	}
	if len(p.points) == 0 {
		return nil, nil
	}

	energies := make([]float64, len(p.points))
	for i, pt := range p.points {
		energies[i] = pt.Energy
	}
	minE, maxE := floats.Min(energies), floats.Max(energies)

	var files []string
	for _, gen := range []struct {
		name string
		fn   func(path string, minE, maxE float64) error
	}{
		{EtaPhiPNG, p.writeEtaPhiPNG},
		{EnergyPNG, p.writeEnergyPNG},
		{EtaPhiHTML, p.writeEtaPhiHTML},
	} {
		path := filepath.Join(p.outputDir, gen.name)
		if err := gen.fn(path, minE, maxE); err != nil {
			return files, fmt.Errorf("%s: %w", gen.name, err)
		}
		files = append(files, path)
	}

	monitoring.Diagf("wrote %d plots for %d clusters to %s", len(files), len(p.points), p.outputDir)
	return files, nil
}

func (p *EtaPhiPlotter) writeEtaPhiPNG(path string, minE, maxE float64) error {
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("Clusters (n=%d)", len(p.points))
	pl.X.Label.Text = "eta"
	pl.Y.Label.Text = "phi (rad)"
	pl.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(p.points))
	for i, pt := range p.points {
		xys[i] = plotter.XY{X: pt.Eta, Y: pt.Phi}
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{
			Color:  energyColor(p.points[i].Energy, minE, maxE),
			Radius: vg.Points(2.5),
			Shape:  draw.CircleGlyph{},
		}
	}
	pl.Add(sc)

	if err := pl.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save eta-phi plot: %w", err)
	}
	return nil
}

func (p *EtaPhiPlotter) writeEnergyPNG(path string, _, _ float64) error {
	pl := plot.New()
	pl.Title.Text = "Cluster energy"
	pl.X.Label.Text = "Energy (GeV)"
	pl.Y.Label.Text = "Clusters"

	vals := make(plotter.Values, len(p.points))
	for i, pt := range p.points {
		vals[i] = pt.Energy
	}
	h, err := plotter.NewHist(vals, energyBins)
	if err != nil {
		return err
	}
	h.FillColor = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	pl.Add(h)

	if err := pl.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save energy plot: %w", err)
	}
	return nil
}

func (p *EtaPhiPlotter) writeEtaPhiHTML(path string, minE, maxE float64) error {
	data := make([]opts.ScatterData, len(p.points))
	for i, pt := range p.points {
		data[i] = opts.ScatterData{Value: []interface{}{pt.Eta, pt.Phi, pt.Energy, pt.NumHits, pt.EventID}}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Calorimeter Clusters", Theme: "dark", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Clusters in eta-phi", Subtitle: fmt.Sprintf("count=%d", len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "eta", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "phi (rad)", NameLocation: "middle", NameGap: 30, Min: -math.Pi, Max: math.Pi}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(minE),
			Max:        float32(maxE),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("clusters", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := scatter.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return f.Close()
}

// energyColor maps e onto the viridis palette over [minE, maxE].
func energyColor(e, minE, maxE float64) color.Color {
	idx := 0
	if maxE > minE {
		idx = int((e - minE) / (maxE - minE) * float64(viridisSteps-1))
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= viridisSteps {
		idx = viridisSteps - 1
	}
	return hexColor(viridis[idx])
}

// hexColor parses "#rrggbb". Malformed input yields black.
func hexColor(s string) color.Color {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.Black
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
