package booking

// Facility identifies one of the bookable campus facilities. The portal only
// offers slots from a fixed per-facility catalog, so anything outside these
// lists is rejected before it ever reaches the scheduler.
type Facility string

const (
	FacilityGymEvening Facility = "gym-evening"
	FacilityGymMorning Facility = "gym-morning"
	FacilitySwimming   Facility = "swimming"
)

var slotCatalog = map[Facility][]string{
	FacilityGymEvening: {"15:00", "16:00", "17:00", "18:00", "19:00", "20:00", "21:00", "22:00"},
	FacilityGymMorning: {"06:30", "07:30", "08:30", "09:30", "10:30", "12:30", "13:30", "14:30"},
	FacilitySwimming:   {"07:00", "08:00", "09:00", "10:00", "15:00", "16:00", "17:00", "18:00", "19:00", "20:00"},
}

var facilityNames = map[Facility]string{
	FacilityGymEvening: "Gym (Evening)",
	FacilityGymMorning: "Gym (Morning)",
	FacilitySwimming:   "Swimming Pool",
}

func Facilities() []Facility {
	return []Facility{FacilityGymEvening, FacilityGymMorning, FacilitySwimming}
}

func (f Facility) Valid() bool {
	_, ok := slotCatalog[f]
	return ok
}

// Slots returns the facility's start times (HH:MM, 24-hour) in catalog order.
func (f Facility) Slots() []string {
	return slotCatalog[f]
}

// DisplayName returns the label the portal uses for the facility.
func (f Facility) DisplayName() string {
	if n, ok := facilityNames[f]; ok {
		return n
	}
	return string(f)
}

// ValidSlot reports whether hhmm is a bookable start time for the facility.
func ValidSlot(f Facility, hhmm string) bool {
	for _, s := range slotCatalog[f] {
		if s == hhmm {
			return true
		}
	}
	return false
}
