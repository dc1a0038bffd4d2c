package textgrid

// Interval is one labeled span of time within a tier.
type Interval struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	Text string  `json:"text"`
}

// Tier is a named track of intervals.
type Tier struct {
	Name      string     `json:"name"`
	XMin      float64    `json:"xmin"`
	XMax      float64    `json:"xmax"`
	Intervals []Interval `json:"intervals"`
}

// Document is a multi-tier time-aligned annotation document.
type Document struct {
	XMin  float64 `json:"xmin"`
	XMax  float64 `json:"xmax"`
	Tiers []Tier  `json:"tiers"`
}

func (d *Document) TierNames() []string {
	names := make([]string, 0, len(d.Tiers))
	for _, tier := range d.Tiers {
		names = append(names, tier.Name)
	}
	return names
}

func (d *Document) FindTier(name string) *Tier {
	for i := range d.Tiers {
		if d.Tiers[i].Name == name {
			return &d.Tiers[i]
		}
	}
	return nil
}

// AppendTier adds a tier and widens the document bounds to cover it.
func (d *Document) AppendTier(tier Tier) {
	if len(d.Tiers) == 0 {
		d.XMin = tier.XMin
		d.XMax = tier.XMax
	} else {
		if tier.XMin < d.XMin {
			d.XMin = tier.XMin
		}
		if tier.XMax > d.XMax {
			d.XMax = tier.XMax
		}
	}
	d.Tiers = append(d.Tiers, tier)
}

// SingleTier returns a one-tier copy sharing the document bounds, used to
// feed single-tier input to the external aligners.
func (d *Document) SingleTier(name string) *Document {
	tier := d.FindTier(name)
	if tier == nil {
		return nil
	}
	return &Document{
		XMin:  d.XMin,
		XMax:  d.XMax,
		Tiers: []Tier{*tier},
	}
}
