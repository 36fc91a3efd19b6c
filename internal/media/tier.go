package media

// Tier enumerates subscription tiers.
type Tier string

const (
	TierFree              Tier = "free"
	TierArtistBasic       Tier = "artist_basic"
	TierArtistPremium     Tier = "artist_premium"
	TierAdvertiserBasic   Tier = "advertiser_basic"
	TierAdvertiserPremium Tier = "advertiser_premium"
)

// TierWeights holds the base priorities a tier assigns to each origin.
// Higher tiers skew weight toward owned content.
type TierWeights struct {
	Owned   int
	Catalog int
}

var tierWeights = map[Tier]TierWeights{
	TierFree:              {Owned: 60, Catalog: 40},
	TierArtistBasic:       {Owned: 70, Catalog: 30},
	TierArtistPremium:     {Owned: 80, Catalog: 20},
	TierAdvertiserBasic:   {Owned: 75, Catalog: 25},
	TierAdvertiserPremium: {Owned: 85, Catalog: 15},
}

// WeightsFor returns the tier's base priorities, falling back to free for
// unknown tiers.
func WeightsFor(tier Tier) TierWeights {
	if w, ok := tierWeights[tier]; ok {
		return w
	}
	return tierWeights[TierFree]
}
