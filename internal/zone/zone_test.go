package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Lookup(t *testing.T) {
	r := Default()

	z, ok := r.Lookup("대구광역시", "북구", "노곡동")
	require.True(t, ok)
	assert.Equal(t, 88, z.NX)
	assert.Equal(t, 89, z.NY)
	assert.Equal(t, "1018683", z.RiverSensorID)
	assert.Equal(t, "노곡동", z.Name)

	z, ok = r.Lookup("대구광역시", "달서구", "죽전동")
	require.True(t, ok)
	assert.Equal(t, "죽전네거리/서남시장", z.Name)
	assert.Equal(t, 86, z.NX)

	z, ok = r.Lookup("대구광역시", "동구", "효목동")
	require.True(t, ok)
	assert.Equal(t, "동촌유원지", z.Name)
}

func TestLookup_ExactMatchOnly(t *testing.T) {
	r := Default()

	cases := []struct {
		name                        string
		region, subregion, locality string
	}{
		{"unknown locality", "대구광역시", "북구", "침산동"},
		{"wrong subregion", "대구광역시", "동구", "노곡동"},
		{"unknown region", "서울특별시", "북구", "노곡동"},
		{"surrounding whitespace", " 대구광역시", "북구", "노곡동"},
		{"trailing whitespace", "대구광역시", "북구", "노곡동 "},
		{"empty", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := r.Lookup(tc.region, tc.subregion, tc.locality)
			assert.False(t, ok)
		})
	}
}

func TestTree(t *testing.T) {
	tree := Default().Tree()

	require.Len(t, tree, 1)
	daegu := tree["대구광역시"]
	require.Len(t, daegu, 3)
	assert.Equal(t, 91, daegu["동구"]["효목동"].NX)
	assert.Equal(t, 35.9063, daegu["북구"]["노곡동"].Lat)
}

func TestZones_RegistrationOrder(t *testing.T) {
	zones := Default().Zones()
	require.Len(t, zones, 3)
	assert.Equal(t, "노곡동", zones[0].Locality)
	assert.Equal(t, "죽전동", zones[1].Locality)
	assert.Equal(t, "효목동", zones[2].Locality)
}
