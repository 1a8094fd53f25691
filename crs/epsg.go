package crs

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	grs80  = "+ellps=GRS80 +towgs84=0,0,0,0,0,0,0"
	wgs84  = "+datum=WGS84"
	metres = "+units=m +no_defs"
)

var known = map[int]string{
	4326:  "+proj=longlat " + wgs84 + " +no_defs",
	4258:  "+proj=longlat " + grs80 + " +no_defs",
	3857:  "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 " + metres,
	3006:  "+proj=utm +zone=33 " + grs80 + " " + metres,
	2154:  "+proj=lcc +lat_1=49 +lat_2=44 +lat_0=46.5 +lon_0=3 +x_0=700000 +y_0=6600000 " + grs80 + " " + metres,
	27700: "+proj=tmerc +lat_0=49 +lon_0=-2 +k=0.9996012717 +x_0=400000 +y_0=-100000 +ellps=airy +towgs84=446.448,-125.157,542.06,0.15,0.247,0.842,-20.489 " + metres,
}

// SWEREF99 local zones, 3007 to 3018.
var sweref99Meridians = []float64{12, 13.5, 15, 16.5, 18, 14.25, 15.75, 17.25, 18.75, 20.25, 21.75, 23.25}

var names = map[int]string{
	4326:  "WGS 84",
	4258:  "ETRS89",
	3857:  "WGS 84 / Pseudo-Mercator",
	3006:  "SWEREF99 TM",
	2154:  "RGF93 / Lambert-93",
	27700: "OSGB 1936 / British National Grid",
}

func lookup(code int) (string, bool) {
	if p, ok := known[code]; ok {
		return p, true
	}
	switch {
	case code >= 3007 && code <= 3018:
		lon := strconv.FormatFloat(sweref99Meridians[code-3007], 'f', -1, 64)
		return "+proj=tmerc +lat_0=0 +lon_0=" + lon + " +k=1 +x_0=150000 +y_0=0 " + grs80 + " " + metres, true
	case code >= 32601 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d %s %s", code-32600, wgs84, metres), true
	case code >= 32701 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south %s %s", code-32700, wgs84, metres), true
	case code >= 25828 && code <= 25838:
		return fmt.Sprintf("+proj=utm +zone=%d %s %s", code-25800, grs80, metres), true
	}
	return "", false
}

// Name returns the EPSG name of a supported code.
func Name(code int) string {
	if n, ok := names[code]; ok {
		return n
	}
	switch {
	case code >= 3007 && code <= 3018:
		lon := sweref99Meridians[code-3007]
		return fmt.Sprintf("SWEREF99 %d %02d", int(lon), int((lon-float64(int(lon)))*60))
	case code >= 32601 && code <= 32660:
		return fmt.Sprintf("WGS 84 / UTM zone %dN", code-32600)
	case code >= 32701 && code <= 32760:
		return fmt.Sprintf("WGS 84 / UTM zone %dS", code-32700)
	case code >= 25828 && code <= 25838:
		return fmt.Sprintf("ETRS89 / UTM zone %dN", code-25800)
	}
	return ""
}

// epsgByName matches the top level name of an ESRI style WKT without authority.
func epsgByName(wkt string) int {
	start := strings.Index(wkt, "\"")
	if start < 0 {
		return 0
	}
	end := strings.Index(wkt[start+1:], "\"")
	if end < 0 {
		return 0
	}
	name := strings.NewReplacer("_", " ").Replace(wkt[start+1 : start+1+end])
	switch strings.ToUpper(name) {
	case "GCS WGS 1984":
		return 4326
	case "GCS ETRS 1989":
		return 4258
	case "WGS 1984 WEB MERCATOR AUXILIARY SPHERE":
		return 3857
	case "BRITISH NATIONAL GRID":
		return 27700
	}
	for code := range known {
		if strings.EqualFold(Name(code), name) {
			return code
		}
	}
	for code := 3007; code <= 3018; code++ {
		if strings.EqualFold(Name(code), name) {
			return code
		}
	}
	return 0
}

// ToWKT returns the WKT of the CRS, generating one from the EPSG table when needed.
func (c CRS) ToWKT() (string, error) {
	if c.WKT != "" {
		return c.WKT, nil
	}
	def, ok := lookup(c.EPSG)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknown, c)
	}
	params := parseProj4(def)
	geog := geogcs(params)
	if params["proj"] == "longlat" {
		return fmt.Sprintf("%s,AUTHORITY[\"EPSG\",\"%d\"]]", strings.TrimSuffix(geog, "]"), c.EPSG), nil
	}

	var proj string
	var parameters [][2]string
	switch params["proj"] {
	case "utm":
		zone, _ := strconv.Atoi(params["zone"])
		y0 := "0"
		if _, south := params["south"]; south {
			y0 = "10000000"
		}
		proj = "Transverse_Mercator"
		parameters = [][2]string{
			{"latitude_of_origin", "0"}, {"central_meridian", strconv.Itoa(zone*6 - 183)},
			{"scale_factor", "0.9996"}, {"false_easting", "500000"}, {"false_northing", y0},
		}
	case "tmerc":
		proj = "Transverse_Mercator"
		parameters = [][2]string{
			{"latitude_of_origin", params["lat_0"]}, {"central_meridian", params["lon_0"]},
			{"scale_factor", params["k"]}, {"false_easting", params["x_0"]}, {"false_northing", params["y_0"]},
		}
	case "lcc":
		proj = "Lambert_Conformal_Conic_2SP"
		parameters = [][2]string{
			{"standard_parallel_1", params["lat_1"]}, {"standard_parallel_2", params["lat_2"]},
			{"latitude_of_origin", params["lat_0"]}, {"central_meridian", params["lon_0"]},
			{"false_easting", params["x_0"]}, {"false_northing", params["y_0"]},
		}
	case "merc":
		proj = "Mercator_1SP"
		parameters = [][2]string{
			{"central_meridian", "0"}, {"scale_factor", "1"},
			{"false_easting", "0"}, {"false_northing", "0"},
		}
	default:
		return "", fmt.Errorf("%w: no WKT for %s", ErrUnknown, c)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "PROJCS[\"%s\",%s,PROJECTION[\"%s\"]", Name(c.EPSG), geog, proj)
	for _, p := range parameters {
		fmt.Fprintf(&b, ",PARAMETER[\"%s\",%s]", p[0], p[1])
	}
	fmt.Fprintf(&b, ",UNIT[\"metre\",1],AUTHORITY[\"EPSG\",\"%d\"]]", c.EPSG)
	return b.String(), nil
}

func parseProj4(def string) map[string]string {
	out := make(map[string]string)
	for _, f := range strings.Fields(def) {
		f = strings.TrimPrefix(f, "+")
		k, v, _ := strings.Cut(f, "=")
		out[k] = v
	}
	return out
}

func geogcs(params map[string]string) string {
	switch {
	case params["datum"] == "WGS84" || params["a"] == "6378137":
		return `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`
	case params["ellps"] == "airy":
		return `GEOGCS["OSGB 1936",DATUM["OSGB_1936",SPHEROID["Airy 1830",6377563.396,299.3249646]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`
	default:
		return `GEOGCS["ETRS89",DATUM["European_Terrestrial_Reference_System_1989",SPHEROID["GRS 1980",6378137,298.257222101]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`
	}
}
