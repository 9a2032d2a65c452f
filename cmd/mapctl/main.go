// mapctl：地图数据与渲染的命令行工具（坐标精简、离线渲染、缓存预热、数据校验）
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"tiny-explorers/internal/config"
	"tiny-explorers/internal/geodata"
	"tiny-explorers/internal/logger"
	"tiny-explorers/internal/projection"
	"tiny-explorers/internal/render"
	"tiny-explorers/internal/utils"
	"tiny-explorers/internal/viewport"
)

var (
	verbose  bool
	decimals int
	optOut   string

	region     string
	size       string
	renderOut  string
	correct    string
	errName    string
	hintName   string
	showLabels bool
)

var rootCmd = &cobra.Command{
	Use:   "mapctl",
	Short: "Map dataset and rendering tools for Tiny Explorers",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load(".env")
		level := os.Getenv("LOG_LEVEL")
		if verbose {
			level = "debug"
		}
		logger.SetupWriter(os.Stderr, level, os.Getenv("LOG_FORMAT"))
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize <file.geojson>...",
	Short: "Round coordinates to a fixed number of decimals (in place unless --out)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOptimize,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a region to an SVG or PNG file",
	RunE:  runRender,
}

var preloadCmd = &cobra.Command{
	Use:   "preload",
	Short: "Fetch every region once, warming the shared Redis cache",
	RunE:  runPreload,
}

var validateCmd = &cobra.Command{
	Use:   "validate <file.geojson>...",
	Short: "Check that files are GeoJSON FeatureCollections and report unnamed features",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	optimizeCmd.Flags().IntVarP(&decimals, "decimals", "d", 3, "Decimal places to keep")
	optimizeCmd.Flags().StringVarP(&optOut, "out", "o", "", "Output file (single input only)")

	renderCmd.Flags().StringVarP(&region, "region", "r", "WORLD", "Region: WORLD, ASIA or INDIA")
	renderCmd.Flags().StringVarP(&size, "size", "s", "1200x800", "Output size WxH in pixels")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "map.svg", "Output file (.svg or .png)")
	renderCmd.Flags().StringVar(&correct, "correct", "", "Feature to paint as correct")
	renderCmd.Flags().StringVar(&errName, "error", "", "Feature to paint as error")
	renderCmd.Flags().StringVar(&hintName, "hint", "", "Feature(s) to paint as hinted (loose match)")
	renderCmd.Flags().BoolVar(&showLabels, "labels", true, "Draw labels")

	rootCmd.AddCommand(optimizeCmd, renderCmd, preloadCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runOptimize(cmd *cobra.Command, args []string) error {
	if optOut != "" && len(args) > 1 {
		return fmt.Errorf("--out needs exactly one input file")
	}
	for _, in := range args {
		raw, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		opt, err := geodata.RoundCoordinates(raw, decimals)
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		dst := in
		if optOut != "" {
			dst = optOut
		}
		if err := os.WriteFile(dst, opt, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %.2f MB -> %.2f MB\n", dst, mb(len(raw)), mb(len(opt)))
	}
	return nil
}

func mb(n int) float64 { return float64(n) / 1024 / 1024 }

// parseSize：解析 "WxH"
func parseSize(s string) (float64, float64, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	w, err1 := strconv.ParseFloat(ws, 64)
	h, err2 := strconv.ParseFloat(hs, 64)
	if !ok || err1 != nil || err2 != nil || !(w > 0) || !(h > 0) {
		return 0, 0, fmt.Errorf("invalid size %q, want WxH", s)
	}
	return w, h, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	rg, err := geodata.ParseRegion(region)
	if err != nil {
		return err
	}
	w, h, err := parseSize(size)
	if err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout+5*time.Second)
	defer cancel()
	c, err := geodata.NewProviderFromConfig(cfg, nil).Collection(ctx, rg)
	if err != nil {
		return err
	}
	proj, err := projection.Fit(c.Features, w, h)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(cfg.Catalog.Palette)
	if err != nil {
		return err
	}
	now := time.Now()
	hl := render.Highlight{Correct: correct, Error: errName, Hint: hintName, ShowLabels: showLabels}
	scene := r.Draw(c, proj, hl, now)
	for flag, name := range map[string]string{"--correct": correct, "--error": errName} {
		if name != "" && scene.Find(name) == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s %q matches no feature in %s\n", flag, name, rg)
		}
	}
	if hintName != "" {
		for _, sh := range scene.Matching(hintName) {
			sh.Fill = render.Fill{From: render.HintColor, To: render.HintColor, Start: now}
		}
	}
	frame := render.Frame{Width: w, Height: h, Scene: scene, Transform: viewport.Identity, Stroke: viewport.BaseStroke}

	f, err := os.Create(renderOut)
	if err != nil {
		return err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(renderOut)) {
	case ".png":
		err = render.RasterizePNG(f, frame, now)
	default:
		err = render.WriteSVG(f, frame, now)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d features -> %s\n", rg, c.Len(), renderOut)
	return nil
}

func runPreload(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	var shared geodata.SharedCache
	if rc := utils.OpenRedis(cfg.Redis); rc != nil {
		defer rc.Close()
		if err := rc.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		shared = geodata.NewRedisCache(rc, cfg.Redis.TTL)
	} else {
		fmt.Fprintln(cmd.ErrOrStderr(), "REDIS_ENABLE is not true; loading without the shared cache")
	}
	p := geodata.NewProviderFromConfig(cfg, shared)
	failed := 0
	for _, rg := range geodata.Regions() {
		t0 := time.Now()
		c, err := p.Collection(cmd.Context(), rg)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s FAIL %v\n", rg, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-6s ok   %4d features  %v  %s\n", rg, c.Len(), time.Since(t0).Round(time.Millisecond), p.URL(rg))
	}
	if failed > 0 {
		return fmt.Errorf("%d region(s) failed", failed)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	bad := 0
	for _, in := range args {
		raw, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		c, err := geodata.Decode(geodata.World, raw)
		if err != nil {
			bad++
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", in, err)
			continue
		}
		unnamed := 0
		for _, f := range c.Features {
			if !f.Selectable() {
				unnamed++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d features, %d without properties.name\n", in, c.Len(), unnamed)
	}
	if bad > 0 {
		return fmt.Errorf("%d invalid file(s)", bad)
	}
	return nil
}
