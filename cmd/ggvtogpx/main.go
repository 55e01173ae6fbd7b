package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ra1fh/ggvtogpx/internal/model"
	"github.com/ra1fh/ggvtogpx/pkg/ggvtogpx"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ggvtogpx [infile] [outfile]",
	Short: "Geogrid-Viewer to GPX Converter.",
	Long: `ggvtogpx converts Geogrid-Viewer overlay files to GPX.

Binary overlays written by Geogrid-Viewer 2.0 up to 4.0, ASCII
overlays of version 1.5 and zipped XML overlays of version 5.0 are
supported. The input flavor is detected automatically unless -i is
given. Input and output default to stdin and "-" selects stdout.

Without an outfile the input is parsed and the result discarded, which
matches gpsbabel behaviour and is useful for checking overlay files.`,
	Args:          cobra.MaximumNArgs(2),
	RunE:          runConvert,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.Flags().IntP("debug", "D", 0, "debug <level> (0..4)")
	rootCmd.Flags().StringP("intype", "i", "", "input <type> (ggv_bin, ggv_ovl, ggv_xml)")
	rootCmd.Flags().StringP("file", "f", "", "input <file> (alternative to the infile argument)")
	rootCmd.Flags().StringP("otype", "o", "", "output <type> (ignored)")
	rootCmd.Flags().StringP("outfile", "F", "", "output <file> (alternative to the outfile argument)")
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(versionCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetInt("debug")
	intype, _ := cmd.Flags().GetString("intype")
	infile, _ := cmd.Flags().GetString("file")
	outfile, _ := cmd.Flags().GetString("outfile")

	// The flags win over the positional arguments.
	if infile == "" && len(args) >= 1 {
		infile = args[0]
	}
	if outfile == "" && len(args) >= 2 {
		outfile = args[1]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("debug") && cfg.Debug != 0 {
		debug = cfg.Debug
	}
	if debug < 0 || debug > 4 {
		return fmt.Errorf("invalid debug level: %d (valid range: 0..4)", debug)
	}

	log := logrus.New()
	if debug < 1 {
		log.SetLevel(logrus.WarnLevel)
	}

	formats := ggvtogpx.Formats()
	for _, format := range formats {
		format.SetDebug(debug)
	}

	indata, err := readInput(infile)
	if err != nil {
		return err
	}

	var format ggvtogpx.Format
	if intype != "" {
		format = ggvtogpx.Lookup(formats, intype)
		if format == nil {
			return fmt.Errorf("unknown input type: %s (supported: ggv_bin, ggv_ovl, ggv_xml)", intype)
		}
	} else {
		format = ggvtogpx.Detect(formats, indata)
		if format == nil {
			return ggvtogpx.ErrUnknownFormat
		}
	}
	log.Infof("main: using input format: %s", format.Name())

	geodata, err := format.Read(indata)
	if err != nil {
		return err
	}

	// The environment variable takes precedence over the config file.
	creator := ""
	if _, ok := os.LookupEnv("GGVTOGPX_CREATOR"); !ok {
		creator = cfg.Creator
	}
	result, err := ggvtogpx.NewGPXFormat(creator).Write(geodata)
	if err != nil {
		return err
	}

	if outfile == "" {
		// Parse-only mode without an outfile.
		return nil
	}
	return writeOutput(result, outfile)
}

func readInput(filename string) ([]byte, error) {
	if filename == "" || filename == "-" {
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("couldn't read stdin: %w", err)
		}
		return buf, nil
	}
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("couldn't read file: %s: %w", filename, err)
	}
	return buf, nil
}

func writeOutput(data, filename string) error {
	if filename == "-" {
		if _, err := os.Stdout.WriteString(data); err != nil {
			return fmt.Errorf("couldn't write stdout: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(filename, []byte(data), 0644); err != nil {
		return fmt.Errorf("couldn't write file: %s: %w", filename, err)
	}
	return nil
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Display overlay file information",
	Long: `Display the detected format and content statistics of an
overlay file.

Shows the format flavor, the waypoint, route and track counts, and the
coordinate bounds.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().Bool("json", false, "Output as JSON")
	infoCmd.Flags().Bool("brief", false, "Show only summary")
}

func runInfo(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	brief, _ := cmd.Flags().GetBool("brief")

	indata, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("couldn't read file: %s: %w", inputPath, err)
	}

	format := ggvtogpx.Detect(ggvtogpx.Formats(), indata)
	if format == nil {
		return ggvtogpx.ErrUnknownFormat
	}
	geodata, err := format.Read(indata)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputInfoJSON(inputPath, format.Name(), geodata)
	}
	return outputInfoText(inputPath, format.Name(), geodata, brief)
}

func outputInfoText(path, formatName string, geodata *model.Geodata, brief bool) error {
	if brief {
		fmt.Printf("%s: format=%s waypoints=%d routes=%d tracks=%d\n",
			path, formatName,
			len(geodata.Waypoints), len(geodata.Routes), len(geodata.Tracks))
		return nil
	}

	fmt.Printf("Overlay File: %s\n", path)
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	fmt.Printf("Format:     %s\n", formatName)
	fmt.Println()

	fmt.Println("Contents:")
	fmt.Printf("  Waypoints:        %d\n", len(geodata.Waypoints))
	fmt.Printf("  Routes:           %d\n", len(geodata.Routes))
	fmt.Printf("  Tracks:           %d\n", len(geodata.Tracks))
	fmt.Println()

	if min, max, ok := geodata.Bounds(); ok {
		fmt.Println("Bounds:")
		fmt.Printf("  Latitude:         %.6f to %.6f\n", min.Lat, max.Lat)
		fmt.Printf("  Longitude:        %.6f to %.6f\n", min.Lon, max.Lon)
		fmt.Println()
	}

	// List details if not too many
	if len(geodata.Waypoints) > 0 && len(geodata.Waypoints) <= 20 {
		fmt.Println("Waypoints:")
		for _, waypoint := range geodata.Waypoints {
			fmt.Printf("  %.6f,%.6f", waypoint.Lat, waypoint.Lon)
			if waypoint.Name != "" {
				fmt.Printf(" - %s", waypoint.Name)
			}
			fmt.Println()
		}
		fmt.Println()
	}

	if len(geodata.Routes) > 0 && len(geodata.Routes) <= 20 {
		fmt.Println("Routes:")
		for _, route := range geodata.Routes {
			fmt.Printf("  %s (%d points)\n", route.Name, len(route.Waypoints))
		}
		fmt.Println()
	}

	if len(geodata.Tracks) > 0 && len(geodata.Tracks) <= 20 {
		fmt.Println("Tracks:")
		for _, track := range geodata.Tracks {
			fmt.Printf("  %s (%d points)\n", track.Name, len(track.Waypoints))
		}
	}

	return nil
}

func outputInfoJSON(path, formatName string, geodata *model.Geodata) error {
	info := map[string]interface{}{
		"file":   path,
		"format": formatName,
		"counts": map[string]int{
			"waypoints": len(geodata.Waypoints),
			"routes":    len(geodata.Routes),
			"tracks":    len(geodata.Tracks),
		},
	}

	if min, max, ok := geodata.Bounds(); ok {
		info["bounds"] = map[string]float64{
			"minlat": min.Lat,
			"minlon": min.Lon,
			"maxlat": max.Lat,
			"maxlon": max.Lon,
		}
	}

	tracks := make([]map[string]interface{}, len(geodata.Tracks))
	for i, track := range geodata.Tracks {
		tracks[i] = map[string]interface{}{
			"name":   track.Name,
			"points": len(track.Waypoints),
		}
	}
	info["tracks"] = tracks

	routes := make([]map[string]interface{}, len(geodata.Routes))
	for i, route := range geodata.Routes {
		routes[i] = map[string]interface{}{
			"name":   route.Name,
			"points": len(route.Waypoints),
		}
	}
	info["routes"] = routes

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ggvtogpx version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
	},
}
