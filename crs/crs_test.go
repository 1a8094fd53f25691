package crs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want CRS
	}{
		{"EPSG:3006", EPSG(3006)},
		{"3007", EPSG(3007)},
		{"urn:ogc:def:crs:EPSG::32633", EPSG(32633)},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", EPSG(4326)},
		{"", CRS{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("EPSG:abc")
	assert.Error(t, err)
}

func TestFromWKT_OutermostAuthority(t *testing.T) {
	wkt := `PROJCS["SWEREF99 TM",GEOGCS["SWEREF99",AUTHORITY["EPSG","4619"]],AUTHORITY["EPSG","3006"]]`
	c := FromWKT(wkt)
	assert.Equal(t, 3006, c.EPSG)
	assert.Equal(t, wkt, c.WKT)
}

func TestFromWKT_ESRIName(t *testing.T) {
	assert.Equal(t, 3006, FromWKT(`PROJCS["SWEREF99_TM",GEOGCS["GCS_SWEREF99"]]`).EPSG)
	assert.Equal(t, 3011, FromWKT(`PROJCS["SWEREF99_18_00",GEOGCS["GCS_SWEREF99"]]`).EPSG)
	assert.Equal(t, 4326, FromWKT(`GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984"]]`).EPSG)
	assert.Equal(t, 0, FromWKT(`LOCAL_CS["somewhere"]`).EPSG)
}

func TestEqual(t *testing.T) {
	assert.True(t, EPSG(3006).Equal(CRS{EPSG: 3006, WKT: "PROJCS[...]"}))
	assert.False(t, EPSG(3006).Equal(EPSG(3007)))
	assert.True(t, CRS{WKT: "GEOGCS[ \"x\" ]"}.Equal(CRS{WKT: "GEOGCS[\"x\"]"}))
	assert.False(t, EPSG(3006).Equal(CRS{}))
	assert.True(t, CRS{}.Equal(CRS{}))
}

func TestProj4_Zones(t *testing.T) {
	p, err := EPSG(3012).Proj4()
	require.NoError(t, err)
	assert.Contains(t, p, "+lon_0=14.25")
	assert.Contains(t, p, "+x_0=150000")

	p, err = EPSG(32733).Proj4()
	require.NoError(t, err)
	assert.Contains(t, p, "+zone=33 +south")

	p, err = EPSG(25832).Proj4()
	require.NoError(t, err)
	assert.Contains(t, p, "+zone=32")

	_, err = EPSG(9999).Proj4()
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestToWKT_RoundTripsCode(t *testing.T) {
	for _, code := range []int{4326, 4258, 3857, 3006, 3010, 2154, 27700, 32633, 32733, 25833} {
		wkt, err := EPSG(code).ToWKT()
		require.NoError(t, err, code)
		assert.Equal(t, code, FromWKT(wkt).EPSG, wkt)
	}
	assert.True(t, EPSG(4326).Geographic())
	assert.False(t, EPSG(3006).Geographic())
}

func TestTransform_Mercator(t *testing.T) {
	tr, err := NewTransform(EPSG(4326), EPSG(3857))
	require.NoError(t, err)
	x, y, err := tr.Point(18, 0)
	require.NoError(t, err)
	assert.InDelta(t, 6378137*18*math.Pi/180, x, 1e-3)
	assert.InDelta(t, 0, y, 1e-6)

	lon, lat, err := To4326(EPSG(3857), x, y)
	require.NoError(t, err)
	assert.InDelta(t, 18, lon, 1e-9)
	assert.InDelta(t, 0, lat, 1e-9)
}

func TestTransform_UTMCentralMeridian(t *testing.T) {
	tr, err := NewTransform(EPSG(4326), EPSG(3006))
	require.NoError(t, err)
	x, y, err := tr.Point(15, 0)
	require.NoError(t, err)
	assert.InDelta(t, 500000, x, 1e-3)
	assert.InDelta(t, 0, y, 1e-3)

	lon, lat, err := To4326(EPSG(3006), 674032, 6580822)
	require.NoError(t, err)
	back, err := NewTransform(EPSG(4326), EPSG(3006))
	require.NoError(t, err)
	x, y, err = back.Point(lon, lat)
	require.NoError(t, err)
	assert.InDelta(t, 674032, x, 1e-3)
	assert.InDelta(t, 6580822, y, 1e-3)
}

func TestTransform_IdentityAndUnknown(t *testing.T) {
	tr, err := NewTransform(EPSG(3006), EPSG(3006))
	require.NoError(t, err)
	assert.True(t, tr.Identity())

	_, err = NewTransform(EPSG(3006), CRS{WKT: `LOCAL_CS["site"]`})
	assert.ErrorIs(t, err, ErrUnknown)
}
