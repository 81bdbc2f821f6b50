package geo

// Remoteness classes.
const (
	RemotenessUrban     = "urban"
	RemotenessPeriUrban = "peri_urban"
	RemotenessRemote    = "remote"
)

// urbanCoreKM is the distance from an urban center within which a location
// counts as urban.
const urbanCoreKM = 8.0

// Remoteness classifies a location by its distance to the nearest urban
// center:
//   - urban: urbanKM <= 8
//   - peri_urban: 8 < urbanKM <= reachKM
//   - remote: urbanKM > reachKM
//
// A reach below the urban core radius leaves no peri-urban band.
func Remoteness(urbanKM, reachKM float64) string {
	if urbanKM <= urbanCoreKM {
		return RemotenessUrban
	}
	if urbanKM <= reachKM {
		return RemotenessPeriUrban
	}
	return RemotenessRemote
}
