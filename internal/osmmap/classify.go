package osmmap

// Class is the closed set of geometry classes a way resolves to.
// Classification happens exactly once per way; downstream stages switch
// on the class instead of re-reading tags.
type Class int

const (
	ClassUnclassified Class = iota
	ClassRoad
	ClassBuilding
	ClassPark
	ClassSidewalk
)

func (c Class) String() string {
	switch c {
	case ClassRoad:
		return "road"
	case ClassBuilding:
		return "building"
	case ClassPark:
		return "park"
	case ClassSidewalk:
		return "sidewalk"
	default:
		return "unclassified"
	}
}

// ClassFromString maps a class name back to its Class value. Unknown
// names map to ClassUnclassified.
func ClassFromString(s string) Class {
	switch s {
	case "road":
		return ClassRoad
	case "building":
		return ClassBuilding
	case "park":
		return ClassPark
	case "sidewalk":
		return ClassSidewalk
	default:
		return ClassUnclassified
	}
}

// highwayClasses are the traversable highway values extracted as roads,
// in decreasing order of importance.
var highwayClasses = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"service":        true,
	"living_street":  true,
}

var parkLeisure = map[string]bool{
	"park":              true,
	"garden":            true,
	"recreation_ground": true,
}

var parkLanduse = map[string]bool{
	"grass":  true,
	"forest": true,
	"meadow": true,
}

// Classify resolves a tag set to exactly one geometry class.
// Sidewalks win over roads because footway is not a traversable class.
func Classify(tags map[string]string) Class {
	if tags["footway"] == "sidewalk" || tags["highway"] == "footway" {
		return ClassSidewalk
	}
	if highwayClasses[tags["highway"]] {
		return ClassRoad
	}
	if _, ok := tags["building"]; ok {
		return ClassBuilding
	}
	if tags["building:part"] != "" || tags["building:levels"] != "" {
		return ClassBuilding
	}
	if parkLeisure[tags["leisure"]] || parkLanduse[tags["landuse"]] {
		return ClassPark
	}
	return ClassUnclassified
}

// IsTree reports whether a node is a standalone tree point feature.
func IsTree(tags map[string]string) bool {
	return tags["natural"] == "tree"
}
