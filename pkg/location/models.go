package location

// Location is one position estimate from a provider. Accuracy is the
// estimated error radius in meters; GPS providers approximate it from HDOP.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}
