package stub

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// disease is one entry of the hard-coded knowledge base.
type disease struct {
	Name           string
	Description    string
	Confidence     float64
	Symptoms       string
	Treatment      string
	Prevention     string
	AdditionalInfo string
	Sources        []string
}

// mangoDiseases is ordered by descending confidence, the order candidates
// are returned in.
var mangoDiseases = []disease{
	{
		Name:           "Anthracnose",
		Description:    "Fungal disease causing dark sunken lesions on leaves, flowers and fruit.",
		Confidence:     0.65,
		Symptoms:       "Black to dark brown spots on leaves and fruit; blossom blight; fruit rot after harvest.",
		Treatment:      "Spray copper oxychloride (3 g/l) or carbendazim (1 g/l) at 15 day intervals during flowering.",
		Prevention:     "Prune dead twigs, avoid overhead irrigation and keep the canopy open for airflow.",
		AdditionalInfo: "Spreads fastest in humid weather above 25 C with frequent rain.",
		Sources:        []string{"Mango Disease Management Guide, ch. 3", "Regional Plant Protection Bulletin 2023"},
	},
	{
		Name:           "Gall Midge",
		Description:    "Insect pest whose larvae form galls on leaves and damage inflorescences.",
		Confidence:     0.18,
		Symptoms:       "Small raised wart-like galls on leaves; drying of flower panicles; premature fruit drop.",
		Treatment:      "Apply dimethoate (2 ml/l) at bud burst and repeat after 15 days if galls persist.",
		Prevention:     "Plough the orchard floor in summer to expose pupae; remove and destroy infested shoots.",
		AdditionalInfo: "Several overlapping generations occur between flowering and fruit set.",
		Sources:        []string{"Integrated Pest Management for Mango, sec. 5"},
	},
	{
		Name:           "Powdery Mildew",
		Description:    "White powdery fungal growth on young leaves, flowers and fruit.",
		Confidence:     0.08,
		Symptoms:       "White powdery coating on panicles and young fruit; flower drop; distorted leaves.",
		Treatment:      "Dust wettable sulphur (2 g/l) or spray hexaconazole (1 ml/l) at panicle emergence.",
		Prevention:     "Avoid excess nitrogen; schedule preventive sulphur sprays before flowering.",
		AdditionalInfo: "Favoured by cool nights and warm dry days during flowering.",
		Sources:        []string{"Mango Disease Management Guide, ch. 4"},
	},
	{
		Name:           "Sooty Mould",
		Description:    "Black fungal film growing on honeydew left by sap-sucking insects.",
		Confidence:     0.05,
		Symptoms:       "Black velvety coating on leaf surfaces that can be peeled off.",
		Treatment:      "Control hoppers and scale insects, then spray starch solution (20 g/l) to flake off the mould.",
		Prevention:     "Monitor and manage sucking pests early in the season.",
		AdditionalInfo: "Reduces photosynthesis but does not infect leaf tissue directly.",
		Sources:        []string{"Integrated Pest Management for Mango, sec. 7"},
	},
	{
		Name:           "Die Back",
		Description:    "Fungal infection drying twigs from the tip downward.",
		Confidence:     0.04,
		Symptoms:       "Browning and drying of twigs from the tip; gum exudation on branches.",
		Treatment:      "Cut affected twigs 7-8 cm below the infection and spray copper oxychloride (3 g/l).",
		Prevention:     "Seal pruning cuts with Bordeaux paste and avoid wounding branches.",
		AdditionalInfo: "Most severe after the rainy season.",
		Sources:        []string{"Mango Disease Management Guide, ch. 6"},
	},
}

var supportedCrops = []string{"Mango"}

var advisors = []string{"Dr. Plant Pathologist", "Dr. Crop Expert", "Agricultural Specialist"}

func findDisease(name string) (disease, bool) {
	for _, d := range mangoDiseases {
		if equalFold(d.Name, name) {
			return d, true
		}
	}
	return disease{}, false
}

// referencePNG is the placeholder served for every reference photo.
var referencePNG = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 74, G: 124, B: 89, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()
