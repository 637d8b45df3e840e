package gnss

// GPS signal constants.
const (
	CLight  = 299792458.0 // speed of light (m/s)
	OscFreq = 10.23e6     // fundamental oscillator frequency (Hz)

	F1 = 154.0 // L1 carrier multiplier of OscFreq
	F2 = 120.0 // L2 carrier multiplier of OscFreq

	FL1 = F1 * OscFreq // L1 carrier frequency (Hz)
	FL2 = F2 * OscFreq

	WL1 = CLight / FL1 // L1 wavelength (m)
	WL2 = CLight / FL2
)

// Dual-frequency linear combination coefficients. Suffix r applies to
// pseudoranges (meters), suffix p to phases (cycles, scaled to meters).
const (
	f12 = F1 * F1
	f22 = F2 * F2

	// Alpha is f1²/f2² - 1, the ionospheric scale between bands.
	Alpha = f12/f22 - 1.0

	// Ionosphere-free.
	IF1R = f12 / (f12 - f22)
	IF2R = -f22 / (f12 - f22)
	IF1P = WL1 * f12 / (f12 - f22)
	IF2P = -WL2 * f22 / (f12 - f22)

	// Geometry-free.
	GF1R = -1.0
	GF2R = 1.0
	GF1P = WL1
	GF2P = -WL2

	// Narrow-lane range and wide-lane phase.
	WL1R = F1 / (F1 + F2)
	WL2R = F2 / (F1 + F2)
	WL1P = WL1 * F1 / (F1 - F2)
	WL2P = -WL2 * F2 / (F1 - F2)

	// TECUPerMeter converts an L1 ionospheric delay in meters to TEC units.
	TECUPerMeter = FL1 * FL1 * 1.e-16 / 40.28
)
