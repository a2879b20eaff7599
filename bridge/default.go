package bridge

// DefaultBridges is the canal segment this system was built for: the five
// bridges of the Trollhätte kanal passage through Trollhättan, south to
// north. Coordinates are approximate centre-span positions, sufficient for
// the proximity radii involved.
var DefaultBridges = []Bridge{
	{ID: "olidebron", Name: "Olidebron", Lat: 58.2773, Lon: 12.2947, Radius: 30},
	{ID: "klaffbron", Name: "Klaffbron", Lat: 58.2788, Lon: 12.2945, Radius: 40},
	{ID: "jarnvagsbron", Name: "Järnvägsbron", Lat: 58.2820, Lon: 12.2934, Radius: 30},
	{ID: "stridsbergsbron", Name: "Stridsbergsbron", Lat: 58.2872, Lon: 12.2921, Radius: 40},
	{ID: "stallbackabron", Name: "Stallbackabron", Lat: 58.2974, Lon: 12.2886, Radius: 60},
}

// DefaultSequence is the south-to-north ordering of DefaultBridges.
var DefaultSequence = []string{
	"olidebron",
	"klaffbron",
	"jarnvagsbron",
	"stridsbergsbron",
	"stallbackabron",
}

// DefaultTargets names the two operationally meaningful openable bridges.
var DefaultTargets = []string{"Klaffbron", "Stridsbergsbron"}

// DefaultGaps are directional gap distances between adjacent bridges,
// approximated from the charted span positions.
var DefaultGaps = []Gap{
	{From: "olidebron", To: "klaffbron", Meters: 250},
	{From: "klaffbron", To: "jarnvagsbron", Meters: 420},
	{From: "jarnvagsbron", To: "stridsbergsbron", Meters: 600},
	{From: "stridsbergsbron", To: "stallbackabron", Meters: 1200},
}

// NewDefault builds the Registry for the canal segment this system ships
// against out of the box. Operators override it via the YAML bridge table
// (config package) when deploying to a different canal.
func NewDefault() *Registry {
	return New(DefaultBridges, DefaultSequence, DefaultTargets, DefaultGaps)
}
