package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/model"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<yml_catalog date="2025-05-20 10:00">
  <shop>
    <name>Автозапчасти</name>
    <categories>
      <category id="55">Тормоза</category>
      <category id="56" parentId="55">Диски</category>
    </categories>
    <offers>
      <offer id="1001" available="true">
        <name>Диск тормозной SANGSIN арт. SD4005</name>
        <price>3741</price>
        <categoryId>56</categoryId>
        <picture>https://example.com/1001.jpg</picture>
        <vendor>Sangsin</vendor>
        <vendorCode>SD4005</vendorCode>
        <description>Передний &amp; задний&nbsp;мост</description>
        <count>4</count>
        <dimensions>40/30/10</dimensions>
        <weight>5.2</weight>
      </offer>
      <offer id="1002">
        <name> Гайка колесная </name>
        <price>120</price>
        <categoryId>55</categoryId>
        <vendor>Kraft</vendor>
        <vendorCode>KT-1</vendorCode>
        <count>100</count>
        <dimensions>2/2/1</dimensions>
        <weight>0.05</weight>
      </offer>
    </offers>
  </shop>
</yml_catalog>`

func TestParse(t *testing.T) {
	catalog, err := Parse(strings.NewReader(sampleFeed))
	require.NoError(t, err)

	assert.Equal(t, "Автозапчасти", catalog.ShopName)
	assert.Equal(t, "2025-05-20 10:00", catalog.Date)
	assert.Equal(t, map[string]string{"55": "Тормоза", "56": "Диски"}, catalog.Categories)
	require.Len(t, catalog.Offers, 2)

	assert.Equal(t, model.Offer{
		ID:          "1001",
		Name:        "Диск тормозной SANGSIN арт. SD4005",
		Price:       "3741",
		CategoryID:  "56",
		Picture:     "https://example.com/1001.jpg",
		Vendor:      "Sangsin",
		VendorCode:  "SD4005",
		Description: "Передний & задний\u00a0мост",
		Count:       "4",
		Dimensions:  "40/30/10",
		Weight:      "5.2",
	}, catalog.Offers[0])

	second := catalog.Offers[1]
	assert.Equal(t, "Гайка колесная", second.Name)
	assert.Empty(t, second.Picture)
	assert.Empty(t, second.MissingFields())
}

func TestParse_Windows1251(t *testing.T) {
	doc := strings.Replace(sampleFeed, `encoding="UTF-8"`, `encoding="windows-1251"`, 1)
	doc = strings.ReplaceAll(doc, "&nbsp;", " ")
	encoded, err := charmap.Windows1251.NewEncoder().String(doc)
	require.NoError(t, err)

	catalog, err := Parse(strings.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, catalog.Offers, 2)
	assert.Equal(t, "Гайка колесная", catalog.Offers[1].Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"no shop", `<yml_catalog><offers/></yml_catalog>`, ErrNoShop},
		{"malformed", `<yml_catalog><shop><offers><offer id="1"><name>x</offers></shop>`, nil},
		{"unknown encoding", `<?xml version="1.0" encoding="klingon-8"?><yml_catalog/>`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestParse_NoOffersIsEmpty(t *testing.T) {
	catalog, err := Parse(strings.NewReader(`<yml_catalog><shop><name>x</name></shop></yml_catalog>`))
	require.NoError(t, err)
	assert.Empty(t, catalog.Offers)
}

func TestParse_IgnoresOffersOutsideOffersSection(t *testing.T) {
	doc := `<yml_catalog><shop>
		<promos><offer id="p1"><name>promo</name></offer></promos>
		<offers><offer id="1"><name>Гайка</name></offer></offers>
	</shop></yml_catalog>`

	catalog, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, catalog.Offers, 1)
	assert.Equal(t, "1", catalog.Offers[0].ID)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFeed), 0o600))

	got, err := FileSource{Path: path}.Offers(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.xml")}.Offers(context.Background())
	assert.Error(t, err)
}

func fastRetry() common.RetryOptions {
	return common.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestHTTPSource(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	cache := filepath.Join(t.TempDir(), "tmp", "feed.xml")
	src := NewHTTPSource(server.URL, cache)
	src.Retry = fastRetry()

	got, err := src.Offers(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), calls.Load(), "a 5xx is retried")
	assert.FileExists(t, cache)
}

func TestHTTPSource_ClientErrorKeepsCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache := filepath.Join(t.TempDir(), "feed.xml")
	require.NoError(t, os.WriteFile(cache, []byte(sampleFeed), 0o600))

	src := NewHTTPSource(server.URL, cache)
	src.Retry = fastRetry()

	_, err := src.Offers(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "a 4xx is not retried")

	data, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Equal(t, sampleFeed, string(data))
}

func TestHTTPSource_MissingURL(t *testing.T) {
	src := NewHTTPSource("", filepath.Join(t.TempDir(), "feed.xml"))
	_, err := src.Offers(context.Background())
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
