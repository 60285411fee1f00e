// Package catalog implements domain.TileCatalog against an HTTP imagery
// catalog: scene search by region and date range, raster download by
// reference.
package catalog

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/oceansentry/slick-detect/internal/domain"
)

// Client talks to the imagery catalog API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a catalog client. baseURL has no trailing slash.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Search lists scenes intersecting the region within [from, to]. Overlapping
// searches may return the same scene twice; deduplication is the caller's
// job.
func (c *Client) Search(ctx context.Context, region domain.BBox, from, to time.Time) ([]domain.TileDescriptor, error) {
	params := url.Values{
		"bbox": {fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", region.MinLon, region.MinLat, region.MaxLon, region.MaxLat)},
		"from": {from.UTC().Format(time.RFC3339)},
		"to":   {to.UTC().Format(time.RFC3339)},
	}

	var resp searchResponse
	if err := c.getJSON(ctx, c.baseURL+"/v1/scenes?"+params.Encode(), &resp); err != nil {
		return nil, &domain.AcquisitionError{Err: err}
	}

	tiles := make([]domain.TileDescriptor, 0, len(resp.Scenes))
	for _, s := range resp.Scenes {
		tiles = append(tiles, domain.TileDescriptor{
			ID:          s.ID,
			AcquiredAt:  s.AcquiredAt,
			Footprint:   domain.BBox{MinLon: s.BBox[0], MinLat: s.BBox[1], MaxLon: s.BBox[2], MaxLat: s.BBox[3]},
			DownloadRef: s.DownloadRef,
		})
	}
	c.logger.Debug("catalog search", "scenes", len(tiles), "from", from, "to", to)
	return tiles, nil
}

// Fetch downloads one scene's raster. The wire format carries the pixel
// block as base64 little-endian float32, row-major.
func (c *Client) Fetch(ctx context.Context, downloadRef string) (*domain.RawRaster, error) {
	var resp rasterResponse
	u := c.baseURL + "/v1/rasters/" + url.PathEscape(downloadRef)
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, &domain.AcquisitionError{TileID: downloadRef, Err: err}
	}

	raw, err := resp.toRaster()
	if err != nil {
		return nil, &domain.AcquisitionError{TileID: downloadRef, Err: err}
	}
	return raw, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Catalog API response types.

type searchResponse struct {
	Scenes []scene `json:"scenes"`
}

type scene struct {
	ID          string     `json:"id"`
	AcquiredAt  time.Time  `json:"acquired_at"`
	BBox        [4]float64 `json:"bbox"` // min_lon, min_lat, max_lon, max_lat
	DownloadRef string     `json:"download_ref"`
}

type rasterResponse struct {
	Height    int        `json:"height"`
	Width     int        `json:"width"`
	Pixels    string     `json:"pixels"`              // base64 little-endian float32, row-major
	PixelsVH  string     `json:"pixels_vh,omitempty"` // cross-pol band, dual-pol scenes only
	Nodata    *float64   `json:"nodata,omitempty"`
	Transform [6]float64 `json:"transform"`
	CRS       string     `json:"crs"`
}

func (r rasterResponse) toRaster() (*domain.RawRaster, error) {
	if r.Height <= 0 || r.Width <= 0 {
		return nil, fmt.Errorf("raster dimensions %dx%d", r.Height, r.Width)
	}

	px, err := decodePixelBlock(r.Pixels, r.Height, r.Width)
	if err != nil {
		return nil, err
	}

	var vh [][]float64
	if r.PixelsVH != "" {
		if vh, err = decodePixelBlock(r.PixelsVH, r.Height, r.Width); err != nil {
			return nil, fmt.Errorf("cross-pol band: %w", err)
		}
	}

	return &domain.RawRaster{
		Pixels:    px,
		VH:        vh,
		Nodata:    r.Nodata,
		Transform: r.Transform,
		CRS:       r.CRS,
	}, nil
}

func decodePixelBlock(encoded string, height, width int) ([][]float64, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode pixel block: %w", err)
	}
	want := height * width * 4
	if len(blob) != want {
		return nil, fmt.Errorf("pixel block is %d bytes, want %d for %dx%d float32", len(blob), want, height, width)
	}

	px := make([][]float64, height)
	for row := 0; row < height; row++ {
		px[row] = make([]float64, width)
		for col := 0; col < width; col++ {
			off := (row*width + col) * 4
			bits := binary.LittleEndian.Uint32(blob[off : off+4])
			px[row][col] = float64(math.Float32frombits(bits))
		}
	}
	return px, nil
}
