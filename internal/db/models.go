package db

// Vehicle is the persisted vehicle record. ID is assigned by the repository
// on first save and never changes afterwards.
type Vehicle struct {
	ID           int64   `json:"id" db:"id"`
	Registration string  `json:"registration" db:"registration"` // unique across all vehicles
	Make         string  `json:"make" db:"make"`
	Model        string  `json:"model" db:"model"`
	Colour       *string `json:"colour" db:"colour"`
	ColourCode   *string `json:"colourCode" db:"colour_code"`
	IsDrivable   bool    `json:"isDrivable" db:"is_drivable"`
	VIN          *string `json:"vin" db:"vin"`
	EngineSize   *string `json:"engineSize" db:"engine_size"`
	FuelType     *string `json:"fuelType" db:"fuel_type"`
	Transmission *string `json:"transmission" db:"transmission"`
	BodyType     *string `json:"bodyType" db:"body_type"`
	Year         *string `json:"year" db:"year"`
	Mileage      *string `json:"mileage" db:"mileage"`
}

// Clone returns a copy that shares no pointers with v.
func (v *Vehicle) Clone() *Vehicle {
	if v == nil {
		return nil
	}
	c := *v
	for _, f := range []**string{&c.Colour, &c.ColourCode, &c.VIN, &c.EngineSize, &c.FuelType,
		&c.Transmission, &c.BodyType, &c.Year, &c.Mileage} {
		if *f != nil {
			s := **f
			*f = &s
		}
	}
	return &c
}
