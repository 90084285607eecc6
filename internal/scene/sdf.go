package scene

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/umakossiooo/osm-city-pipeline/internal/enu"
)

// Physics constants match a standard simulator world setup.
const (
	sdfVersion   = "1.8"
	gravity      = "0 0 -9.81"
	maxStepSize  = 0.001
	groundExtent = 5000.0
)

type sdfRoot struct {
	XMLName xml.Name `xml:"sdf"`
	Version string   `xml:"version,attr"`
	World   sdfWorld `xml:"world"`
}

type sdfWorld struct {
	Name    string      `xml:"name,attr"`
	Physics sdfPhysics  `xml:"physics"`
	Gravity string      `xml:"gravity"`
	Models  []sdfModel  `xml:"model"`
	Include *sdfInclude `xml:"include,omitempty"`
}

type sdfPhysics struct {
	Name           string  `xml:"name,attr"`
	Type           string  `xml:"type,attr"`
	MaxStepSize    float64 `xml:"max_step_size"`
	RealTimeFactor float64 `xml:"real_time_factor"`
}

type sdfInclude struct {
	URI string `xml:"uri"`
}

type sdfModel struct {
	Name   string    `xml:"name,attr"`
	Static bool      `xml:"static"`
	Pose   string    `xml:"pose,omitempty"`
	Links  []sdfLink `xml:"link"`
}

type sdfLink struct {
	Name      string        `xml:"name,attr"`
	Pose      string        `xml:"pose,omitempty"`
	Collision *sdfCollision `xml:"collision,omitempty"`
	Visual    *sdfVisual    `xml:"visual,omitempty"`
}

type sdfCollision struct {
	Name     string      `xml:"name,attr"`
	Geometry sdfGeometry `xml:"geometry"`
}

type sdfVisual struct {
	Name     string       `xml:"name,attr"`
	Geometry sdfGeometry  `xml:"geometry"`
	Material *sdfMaterial `xml:"material,omitempty"`
}

type sdfGeometry struct {
	Plane    *sdfPlane    `xml:"plane,omitempty"`
	Box      *sdfBox      `xml:"box,omitempty"`
	Cylinder *sdfCylinder `xml:"cylinder,omitempty"`
	Sphere   *sdfSphere   `xml:"sphere,omitempty"`
	Polyline *sdfPolyline `xml:"polyline,omitempty"`
}

type sdfPlane struct {
	Normal string `xml:"normal"`
	Size   string `xml:"size"`
}

type sdfBox struct {
	Size string `xml:"size"`
}

type sdfCylinder struct {
	Radius float64 `xml:"radius"`
	Length float64 `xml:"length"`
}

type sdfSphere struct {
	Radius float64 `xml:"radius"`
}

type sdfPolyline struct {
	Points []string `xml:"point"`
	Height float64  `xml:"height"`
}

type sdfMaterial struct {
	Ambient string `xml:"ambient"`
	Diffuse string `xml:"diffuse"`
}

// WriteSDF serializes the scene as an SDF world document.
func (s *Scene) WriteSDF(w io.Writer) error {
	world := sdfWorld{
		Name: s.WorldName,
		Physics: sdfPhysics{
			Name:           "default_physics",
			Type:           "ode",
			MaxStepSize:    maxStepSize,
			RealTimeFactor: 1.0,
		},
		Gravity: gravity,
	}

	world.Models = append(world.Models, groundPlane())

	for _, slab := range s.RoadSlabs {
		world.Models = append(world.Models, slabModel(slab))
	}
	for _, slab := range s.SidewalkSlabs {
		world.Models = append(world.Models, slabModel(slab))
	}
	for _, b := range s.Buildings {
		world.Models = append(world.Models, prismModel(b))
	}
	for _, p := range s.ParkPads {
		world.Models = append(world.Models, prismModel(p))
	}
	for _, t := range s.Trees {
		world.Models = append(world.Models, treeModel(t))
	}

	if s.MeshURI != "" {
		world.Include = &sdfInclude{URI: s.MeshURI}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(sdfRoot{Version: sdfVersion, World: world}); err != nil {
		return fmt.Errorf("scene: SDF encode failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteSDFFile writes the world document to path.
func (s *Scene) WriteSDFFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("scene: failed to create world file: %w", err)
	}
	if err := s.WriteSDF(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func groundPlane() sdfModel {
	size := fnum(groundExtent) + " " + fnum(groundExtent)
	geom := sdfGeometry{Plane: &sdfPlane{Normal: "0 0 1", Size: size}}
	return sdfModel{
		Name:   "ground_plane",
		Static: true,
		Links: []sdfLink{{
			Name:      "link",
			Collision: &sdfCollision{Name: "collision", Geometry: geom},
			Visual: &sdfVisual{
				Name:     "visual",
				Geometry: geom,
				Material: material(Color{0.3, 0.3, 0.3, 1.0}),
			},
		}},
	}
}

func slabModel(slab Slab) sdfModel {
	geom := sdfGeometry{Box: &sdfBox{
		Size: fnum(slab.Length) + " " + fnum(slab.Width) + " " + fnum(slab.Height),
	}}
	return sdfModel{
		Name:   slab.Name,
		Static: true,
		Pose:   poseString(slab.Pose),
		Links: []sdfLink{{
			Name:      "link",
			Collision: &sdfCollision{Name: "collision", Geometry: geom},
			Visual: &sdfVisual{
				Name:     "visual",
				Geometry: geom,
				Material: material(slab.Color),
			},
		}},
	}
}

// prismModel renders an extruded footprint with one polyline visual
// per ring. Inner rings extrude slightly higher so holes read as
// cutouts in the viewer even without real boolean geometry.
func prismModel(p Prism) sdfModel {
	link := sdfLink{Name: "link"}

	outer := polylineGeom(p.Outer, p.Height)
	link.Collision = &sdfCollision{Name: "collision", Geometry: outer}
	link.Visual = &sdfVisual{
		Name:     "visual",
		Geometry: outer,
		Material: material(p.Color),
	}

	model := sdfModel{
		Name:   p.Name,
		Static: true,
		Links:  []sdfLink{link},
	}
	for i, inner := range p.Inners {
		model.Links = append(model.Links, sdfLink{
			Name: fmt.Sprintf("inner_%d", i),
			Visual: &sdfVisual{
				Name:     "visual",
				Geometry: polylineGeom(inner, p.Height*1.001),
				Material: material(p.Color),
			},
		})
	}
	return model
}

// polylineGeom emits an extrusion ring. The closing duplicate point is
// dropped: SDF polylines are implicitly closed.
func polylineGeom(ring []enu.Point, height float64) sdfGeometry {
	n := len(ring)
	if n > 1 && ring[0].East == ring[n-1].East && ring[0].North == ring[n-1].North {
		n--
	}
	points := make([]string, 0, n)
	for _, p := range ring[:n] {
		points = append(points, fnum(p.East)+" "+fnum(p.North))
	}
	return sdfGeometry{Polyline: &sdfPolyline{Points: points, Height: height}}
}

func treeModel(t TreeModel) sdfModel {
	trunk := sdfGeometry{Cylinder: &sdfCylinder{Radius: t.TrunkRadius, Length: t.TrunkHeight}}
	crown := sdfGeometry{Sphere: &sdfSphere{Radius: t.CrownRadius}}
	return sdfModel{
		Name:   t.Name,
		Static: true,
		Pose:   fnum(t.Position.East) + " " + fnum(t.Position.North) + " 0 0 0 0",
		Links: []sdfLink{
			{
				Name:      "trunk",
				Pose:      "0 0 " + fnum(t.TrunkHeight/2) + " 0 0 0",
				Collision: &sdfCollision{Name: "collision", Geometry: trunk},
				Visual:    &sdfVisual{Name: "visual", Geometry: trunk, Material: material(trunkColor)},
			},
			{
				Name:   "crown",
				Pose:   "0 0 " + fnum(t.TrunkHeight+t.CrownRadius*0.6) + " 0 0 0",
				Visual: &sdfVisual{Name: "visual", Geometry: crown, Material: material(crownColor)},
			},
		},
	}
}

func material(c Color) *sdfMaterial {
	rgba := fnum(c.R) + " " + fnum(c.G) + " " + fnum(c.B) + " " + fnum(c.A)
	return &sdfMaterial{Ambient: rgba, Diffuse: rgba}
}

func poseString(p Pose) string {
	return fnum(p.X) + " " + fnum(p.Y) + " " + fnum(p.Z) + " 0 0 " + fnum(p.Yaw)
}

// fnum formats a float with fixed six-decimal precision and the
// trailing zeros trimmed, so reruns emit byte-identical documents.
func fnum(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		s = "0"
	}
	return s
}
