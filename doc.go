// Package main implements segment-hunter, a CLI tool for finding easily
// winnable cycling segments near a location.
//
// # Features
//
//   - Session management with cookie persistence in config.json
//   - Slippy-tile coverage of a circular search area
//   - Segment discovery from map tiles (JSON or Mapbox Vector Tile)
//   - Leaderboard detail via the platform's GraphQL endpoint
//   - Leader heart rate / power scraped from the segment page
//   - Filtering by distance, attempt count, leader HR and power
//   - Console table output, optional JSON file output
//
// # Usage
//
//	segment-hunter hunt --location "44.95,-93.09" [--radius KM] [flags]
//
// # Configuration
//
// Configuration is loaded from config.json (path via --config). The session
// cookie is written back to the config after each run so a refreshed session
// survives between invocations.
//
// Requests run strictly sequentially with a fixed delay between them.
// Search radii that cross the antimeridian or a pole are not supported.
//
// See README.md for detailed configuration options.
package main
