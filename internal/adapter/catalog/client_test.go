package catalog

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceansentry/slick-detect/internal/domain"
)

const testToken = "test-token"

func testClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func encodePixels(px [][]float32) string {
	var blob []byte
	for _, row := range px {
		for _, v := range row {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
			blob = append(blob, b[:]...)
		}
	}
	return base64.StdEncoding.EncodeToString(blob)
}

func TestClient_Search_Success(t *testing.T) {
	acquired := time.Date(2026, 4, 2, 5, 30, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/scenes", r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		assert.Equal(t, "5.000000,4.000000,7.000000,6.000000", r.URL.Query().Get("bbox"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("to"))

		resp := searchResponse{Scenes: []scene{
			{
				ID:          "S1A-20260402",
				AcquiredAt:  acquired,
				BBox:        [4]float64{5.0, 4.0, 5.5, 4.5},
				DownloadRef: "dl/S1A-20260402",
			},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	region := domain.BBox{MinLon: 5, MinLat: 4, MaxLon: 7, MaxLat: 6}
	tiles, err := c.Search(context.Background(), region, acquired.Add(-24*time.Hour), acquired)
	require.NoError(t, err)

	require.Len(t, tiles, 1)
	assert.Equal(t, "S1A-20260402", tiles[0].ID)
	assert.Equal(t, acquired, tiles[0].AcquiredAt)
	assert.Equal(t, "dl/S1A-20260402", tiles[0].DownloadRef)
	assert.InDelta(t, 5.5, tiles[0].Footprint.MaxLon, 1e-9)
}

func TestClient_Search_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream timeout", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Search(context.Background(), domain.BBox{MinLon: 5, MinLat: 4, MaxLon: 7, MaxLat: 6}, time.Now().Add(-time.Hour), time.Now())

	var acqErr *domain.AcquisitionError
	require.True(t, errors.As(err, &acqErr))
	assert.Contains(t, err.Error(), "status 502")
}

func TestClient_Fetch_Success(t *testing.T) {
	nodata := -9999.0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rasters/dl%2FS1A-20260402", r.URL.EscapedPath())

		resp := rasterResponse{
			Height:    2,
			Width:     3,
			Pixels:    encodePixels([][]float32{{1, 2, 3}, {4, 5, 6}}),
			Nodata:    &nodata,
			Transform: [6]float64{0.01, 0, 5.0, 0, -0.01, 4.5},
			CRS:       "EPSG:4326",
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	raw, err := c.Fetch(context.Background(), "dl/S1A-20260402")
	require.NoError(t, err)

	require.Len(t, raw.Pixels, 2)
	require.Len(t, raw.Pixels[0], 3)
	assert.InDelta(t, 1.0, raw.Pixels[0][0], 1e-9)
	assert.InDelta(t, 6.0, raw.Pixels[1][2], 1e-9)
	require.NotNil(t, raw.Nodata)
	assert.Equal(t, -9999.0, *raw.Nodata)
	assert.Equal(t, "EPSG:4326", raw.CRS)
	assert.Equal(t, [6]float64{0.01, 0, 5.0, 0, -0.01, 4.5}, raw.Transform)
}

func TestClient_Fetch_DualPol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := rasterResponse{
			Height:    2,
			Width:     2,
			Pixels:    encodePixels([][]float32{{2, 4}, {6, 8}}),
			PixelsVH:  encodePixels([][]float32{{1, 1}, {3, 2}}),
			Transform: [6]float64{0.01, 0, 5.0, 0, -0.01, 4.5},
			CRS:       "EPSG:4326",
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	raw, err := c.Fetch(context.Background(), "ref")
	require.NoError(t, err)

	require.NotNil(t, raw.VH)
	require.Len(t, raw.VH, 2)
	assert.InDelta(t, 1.0, raw.VH[0][0], 1e-9)
	assert.InDelta(t, 3.0, raw.VH[1][0], 1e-9)
	assert.InDelta(t, 8.0, raw.Pixels[1][1], 1e-9)
}

// Single-pol scenes omit pixels_vh; the raster must come back without a
// cross-pol band rather than an empty one.
func TestClient_Fetch_SinglePolHasNoVH(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := rasterResponse{
			Height: 1,
			Width:  2,
			Pixels: encodePixels([][]float32{{1, 2}}),
			CRS:    "EPSG:4326",
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	raw, err := c.Fetch(context.Background(), "ref")
	require.NoError(t, err)
	assert.Nil(t, raw.VH)
}

func TestClient_Fetch_TruncatedCrossPolBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := rasterResponse{
			Height:   2,
			Width:    2,
			Pixels:   encodePixels([][]float32{{1, 2}, {3, 4}}),
			PixelsVH: encodePixels([][]float32{{1, 2}}), // one row short
			CRS:      "EPSG:4326",
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Fetch(context.Background(), "ref")

	var acqErr *domain.AcquisitionError
	require.True(t, errors.As(err, &acqErr))
	assert.Contains(t, err.Error(), "cross-pol band")
}

func TestClient_Fetch_TruncatedPixelBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := rasterResponse{
			Height: 2,
			Width:  3,
			Pixels: encodePixels([][]float32{{1, 2, 3}}), // one row short
			CRS:    "EPSG:4326",
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Fetch(context.Background(), "ref")

	var acqErr *domain.AcquisitionError
	require.True(t, errors.As(err, &acqErr))
	assert.Contains(t, err.Error(), "pixel block")
}

func TestClient_Fetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Fetch(context.Background(), "missing")

	var acqErr *domain.AcquisitionError
	require.True(t, errors.As(err, &acqErr))
}
