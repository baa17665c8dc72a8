package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
)

// Command names.
const (
	cmdHunt = "hunt"
	cmdHelp = "help"
)

// errAuthRequired indicates the session cookie is invalid or expired.
var errAuthRequired = errors.New("authentication failed: cookie invalid or expired")

func main() {
	_ = godotenv.Load()
	log := newLogger()
	if err := run(context.Background(), log, os.Args[1:]); err != nil {
		log.err(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger, args []string) error {
	if len(args) == 0 {
		printUsage(os.Stdout)
		return nil
	}

	switch args[0] {
	case cmdHelp, "-h", "--help":
		printUsage(os.Stdout)
		return nil
	case cmdHunt:
		return runHunt(ctx, log, args[1:])
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "segment-hunter: find easily winnable cycling segments")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  segment-hunter hunt --location \"lat,lon\" [flags]")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Flags:")
	_, _ = fmt.Fprintln(w, "  --location       Search center as \"lat,lon\" (required)")
	_, _ = fmt.Fprintln(w, "  --radius         Search radius in km (default: 10)")
	_, _ = fmt.Fprintln(w, "  --zoom           Tile zoom level (default: 13)")
	_, _ = fmt.Fprintln(w, "  --region         Region id for tile requests")
	_, _ = fmt.Fprintln(w, "  --min-distance   Minimum segment distance in meters (default: 500)")
	_, _ = fmt.Fprintln(w, "  --max-distance   Maximum segment distance in meters (default: 2000)")
	_, _ = fmt.Fprintln(w, "  --min-attempts   Minimum attempt count (default: 1)")
	_, _ = fmt.Fprintln(w, "  --max-attempts   Maximum attempt count (default: 50)")
	_, _ = fmt.Fprintln(w, "  --max-heart-rate Maximum leader heart rate in bpm (0 = no limit)")
	_, _ = fmt.Fprintln(w, "  --max-power      Maximum leader power in watts (0 = no limit)")
	_, _ = fmt.Fprintln(w, "  --cookie         Session cookie (overrides config)")
	_, _ = fmt.Fprintln(w, "  --config         Path to config.json (default: config.json)")
	_, _ = fmt.Fprintln(w, "  --output         Write results to a JSON file")
	_, _ = fmt.Fprintln(w, "  --dry-run        Enumerate tiles and segments, skip detail fetch")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Environment:")
	_, _ = fmt.Fprintln(w, "  NO_COLOR  Disable colored output")
}

func runHunt(ctx context.Context, log *logger, args []string) error {
	fs := flag.NewFlagSet(cmdHunt, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		configPath  string
		cookie      string
		location    string
		radiusKm    float64
		zoom        int
		regionID    int64
		minDistance float64
		maxDistance float64
		minAttempts int
		maxAttempts int
		maxHR       int
		maxPower    int
		outputPath  string
		dryRun      bool
	)
	fs.StringVar(&configPath, "config", "config.json", "config path")
	fs.StringVar(&cookie, "cookie", "", "session cookie (overrides config)")
	fs.StringVar(&location, "location", "", "search center \"lat,lon\" (required)")
	fs.Float64Var(&radiusKm, "radius", 10, "search radius in km")
	fs.IntVar(&zoom, "zoom", 13, "tile zoom level")
	fs.Int64Var(&regionID, "region", 0, "region id for tile requests")
	fs.Float64Var(&minDistance, "min-distance", 500, "minimum segment distance in meters")
	fs.Float64Var(&maxDistance, "max-distance", 2000, "maximum segment distance in meters")
	fs.IntVar(&minAttempts, "min-attempts", 1, "minimum attempt count")
	fs.IntVar(&maxAttempts, "max-attempts", 50, "maximum attempt count")
	fs.IntVar(&maxHR, "max-heart-rate", 0, "maximum leader heart rate in bpm (0 = no limit)")
	fs.IntVar(&maxPower, "max-power", 0, "maximum leader power in watts (0 = no limit)")
	fs.StringVar(&outputPath, "output", "", "write results to a JSON file")
	fs.BoolVar(&dryRun, "dry-run", false, "enumerate tiles and segments, skip detail fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if location == "" {
		return fmt.Errorf("--location is required")
	}
	center, err := parseLocation(location)
	if err != nil {
		return err
	}

	crit := FilterCriteria{
		MinDistanceM: minDistance,
		MaxDistanceM: maxDistance,
		MinAttempts:  minAttempts,
		MaxAttempts:  maxAttempts,
	}
	if maxHR > 0 {
		crit.MaxHeartRate = &maxHR
	}
	if maxPower > 0 {
		crit.MaxPower = &maxPower
	}
	if err := crit.validate(); err != nil {
		return err
	}

	tiles, err := coverTiles(center, radiusKm, zoom)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cookie != "" {
		cfg.Cookie = strings.TrimSpace(cookie)
	}
	if regionID > 0 {
		cfg.RegionID = regionID
	}
	cfg, err = ensureCookie(cfg, configPath, log)
	if err != nil {
		return err
	}

	client, err := newAPIClient(cfg)
	if err != nil {
		return err
	}

	log.infof("searching around (%v, %v) with radius %vkm", center.Lat, center.Lon, radiusKm)
	log.infof("covering %d tiles at zoom %d", len(tiles), zoom)

	start := time.Now()
	stubs, stats, err := collectSegments(ctx, client, tiles, cfg.RegionID, crit, log)
	if err != nil {
		return err
	}
	_ = persistCookieIfChanged(configPath, &cfg, client, log)

	if stats.TilesFailed > 0 {
		log.warnf("tile sweep: %d fetched, %d failed", stats.TilesFetched, stats.TilesFailed)
	}
	if len(stubs) == 0 {
		log.warn("no segments found in the searched tiles")
		return nil
	}
	log.okf("found %d segments to analyze", len(stubs))

	if dryRun {
		log.okf("dry-run: stopping before detail fetch (%d tiles, %d segments, elapsed %s)",
			len(tiles), len(stubs), time.Since(start).Round(100*time.Millisecond))
		return nil
	}

	ids := make([]int64, 0, len(stubs))
	for _, s := range stubs {
		ids = append(ids, s.ID)
	}

	details, err := fetchDetails(ctx, client, ids, log)
	if err != nil {
		return err
	}
	_ = persistCookieIfChanged(configPath, &cfg, client, log)
	if len(details) < len(ids) {
		log.infof("leaderboard detail: %d of %d segments have a recorded leader", len(details), len(ids))
	}

	if err := enrichLeaderStats(ctx, client, details, crit, log); err != nil {
		return err
	}
	_ = persistCookieIfChanged(configPath, &cfg, client, log)

	winnable := filterSegments(details, crit)
	log.okf("segments: %d collected, %d with detail, %d winnable (elapsed %s)",
		len(stubs), len(details), len(winnable), time.Since(start).Round(time.Second))

	if len(winnable) == 0 {
		log.warn("no winnable segments matched your criteria")
		return nil
	}

	renderTable(os.Stdout, winnable)

	if outputPath != "" {
		if err := writeResults(outputPath, winnable); err != nil {
			return err
		}
		log.okf("results saved to %s", outputPath)
	}
	return nil
}

// enrichLeaderStats scrapes leader heart rate and power for segments inside
// the distance/attempt ranges. Segments outside those ranges are rejected by
// the filter regardless of leader readings, so their pages are not fetched.
// A failed scrape leaves the readings absent and the segment in play.
func enrichLeaderStats(ctx context.Context, client *apiClient, details []SegmentDetail, crit FilterCriteria, log *logger) error {
	candidates := make([]int, 0, len(details))
	for i, d := range details {
		if crit.inRanges(d) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	bar := progressbar.Default(int64(len(candidates)), "Fetching leader stats")
	defer func() { _ = bar.Finish() }()

	for _, i := range candidates {
		hr, power, verified, err := client.leaderStats(ctx, details[i].ID)
		if err != nil {
			if isAuthError(err) {
				return errAuthRequired
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.warnf("leader stats for segment %d failed: %v", details[i].ID, err)
			_ = bar.Add(1)
			continue
		}
		details[i].LeaderHR = hr
		details[i].LeaderPower = power
		details[i].PowerVerified = verified
		_ = bar.Add(1)
	}
	return nil
}

// ensureCookie prompts for authentication material when no cookie is
// configured and persists what the user pastes.
func ensureCookie(cfg appConfig, configPath string, log *logger) (appConfig, error) {
	cfg.Cookie = strings.TrimSpace(cfg.Cookie)
	if cfg.Cookie != "" {
		return cfg, nil
	}

	in, err := promptAuthMaterial()
	if err != nil {
		return appConfig{}, err
	}
	cfg.Cookie = in.Cookie
	if in.UserAgent != "" {
		cfg.UserAgent = in.UserAgent
	}
	if err := saveConfig(configPath, cfg); err != nil {
		return appConfig{}, err
	}
	log.ok("config updated (cookie saved)")
	return cfg, nil
}

// persistCookieIfChanged saves config if the session cookie was refreshed.
func persistCookieIfChanged(configPath string, cfg *appConfig, c *apiClient, log *logger) error {
	if cfg == nil || c == nil {
		return nil
	}
	newCookie := strings.TrimSpace(c.exportCookieHeader())
	if newCookie == "" {
		return nil
	}
	if strings.TrimSpace(cfg.Cookie) == newCookie {
		return nil
	}
	cfg.Cookie = newCookie
	if err := saveConfig(configPath, *cfg); err != nil {
		return err
	}
	if log != nil {
		log.ok("config updated (cookie refreshed)")
	}
	return nil
}

// authMaterial holds parsed authentication data from user input.
type authMaterial struct {
	Cookie    string
	UserAgent string
}

func promptAuthMaterial() (authMaterial, error) {
	_, _ = fmt.Fprintln(os.Stdout, "Enter session cookie (paste cookie / `Cookie: ...` / curl command, end with empty line):")
	_, _ = fmt.Fprint(os.Stdout, "> ")

	var lines []string
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return authMaterial{}, err
	}
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return authMaterial{}, errors.New("empty input")
	}

	out := parseAuthMaterial(text)
	if out.Cookie == "" {
		return authMaterial{}, errors.New("cookie not found: paste `-b '...'` content or `Cookie: ...`")
	}
	return out, nil
}

// Regex patterns for parsing curl commands and headers.
var (
	reCurlCookieBQuoted   = regexp.MustCompile(`(?s)(?:^|\s)-b\s+(?:'([^']*)'|"([^"]*)")`)
	reCurlCookieBUnquoted = regexp.MustCompile(`(?m)(?:^|\s)-b\s+([^\s\\]+)`)
	reHeaderCookie        = regexp.MustCompile(`(?im)^\s*(?:-H\s+)?['"]?cookie\s*:\s*(.*?)['"]?\s*$`)
	reHeaderUA            = regexp.MustCompile(`(?im)^\s*(?:-H\s+)?['"]?user-agent\s*:\s*(.*?)['"]?\s*$`)
)

func parseAuthMaterial(text string) authMaterial {
	var out authMaterial
	trim := func(s string) string { return strings.TrimSpace(strings.Trim(s, `"'`)) }

	if m := reCurlCookieBQuoted.FindStringSubmatch(text); len(m) == 3 {
		out.Cookie = trim(m[1])
		if out.Cookie == "" {
			out.Cookie = trim(m[2])
		}
	}
	if out.Cookie == "" {
		if m := reHeaderCookie.FindStringSubmatch(text); len(m) == 2 {
			out.Cookie = trim(m[1])
		}
	}
	if out.Cookie == "" {
		if m := reCurlCookieBUnquoted.FindStringSubmatch(text); len(m) == 2 {
			out.Cookie = trim(m[1])
		}
	}

	if m := reHeaderUA.FindStringSubmatch(text); len(m) == 2 {
		out.UserAgent = trim(m[1])
	}

	if out.Cookie == "" {
		line := strings.TrimSpace(text)
		line = strings.TrimPrefix(line, "Cookie:")
		line = strings.TrimSpace(line)
		out.Cookie = trim(line)
	}
	return out
}
