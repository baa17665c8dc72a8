package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// kmPerDegreeLat is the approximate length of one degree of latitude. One
// degree of longitude shrinks by cos(latitude).
const kmPerDegreeLat = 111.32

// maxZoom bounds the accepted slippy-tile zoom levels.
const maxZoom = 22

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64
	Lon float64
}

func (c Coordinate) validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90,90]", c.Lat)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180,180]", c.Lon)
	}
	return nil
}

// parseLocation parses a "lat,lon" string into a validated Coordinate.
func parseLocation(s string) (Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("invalid location %q: want \"lat,lon\"", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid longitude %q", parts[1])
	}
	c := Coordinate{Lat: lat, Lon: lon}
	if err := c.validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// TileCoordinate identifies one slippy map tile.
type TileCoordinate struct {
	X    int
	Y    int
	Zoom int
}

// tileAt projects a coordinate into the tile grid at the given zoom using the
// standard Web-Mercator formula.
func tileAt(c Coordinate, zoom int) TileCoordinate {
	latRad := c.Lat * math.Pi / 180
	n := math.Exp2(float64(zoom))
	x := int(math.Floor((c.Lon + 180) / 360 * n))
	y := int(math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n))
	return TileCoordinate{X: x, Y: y, Zoom: zoom}
}

// coverTiles returns the tiles covering a circle of radiusKm around center.
// The circle's bounding box is projected into the grid and every tile in the
// spanned rectangle is returned, so coverage may be conservative but never
// misses a tile the circle touches. Radii crossing the antimeridian or a
// pole are not supported.
func coverTiles(center Coordinate, radiusKm float64, zoom int) ([]TileCoordinate, error) {
	if err := center.validate(); err != nil {
		return nil, err
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("radius %v must be positive", radiusKm)
	}
	if zoom < 0 || zoom > maxZoom {
		return nil, fmt.Errorf("zoom %d out of range [0,%d]", zoom, maxZoom)
	}

	latDelta := radiusKm / kmPerDegreeLat
	lonDelta := radiusKm / (kmPerDegreeLat * math.Cos(center.Lat*math.Pi/180))

	corners := []Coordinate{
		{Lat: center.Lat + latDelta, Lon: center.Lon - lonDelta},
		{Lat: center.Lat + latDelta, Lon: center.Lon + lonDelta},
		{Lat: center.Lat - latDelta, Lon: center.Lon - lonDelta},
		{Lat: center.Lat - latDelta, Lon: center.Lon + lonDelta},
	}

	first := tileAt(corners[0], zoom)
	minX, maxX := first.X, first.X
	minY, maxY := first.Y, first.Y
	for _, corner := range corners[1:] {
		t := tileAt(corner, zoom)
		minX, maxX = min(minX, t.X), max(maxX, t.X)
		minY, maxY = min(minY, t.Y), max(maxY, t.Y)
	}

	tiles := make([]TileCoordinate, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			tiles = append(tiles, TileCoordinate{X: x, Y: y, Zoom: zoom})
		}
	}
	return tiles, nil
}
