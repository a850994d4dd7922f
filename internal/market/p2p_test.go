package market

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridcommons/internal/prosumer"
)

func sellOffer(id prosumer.ID, qty, ask float64) prosumer.Offer {
	return prosumer.Offer{Prosumer: id, Role: prosumer.RoleSeller, Quantity: qty, Price: ask}
}

func buyOffer(id prosumer.ID, qty, bid float64) prosumer.Offer {
	return prosumer.Offer{Prosumer: id, Role: prosumer.RoleBuyer, Quantity: qty, Price: bid}
}

func TestMatchCheapestSellerFirst(t *testing.T) {
	offers := []prosumer.Offer{
		sellOffer(1, 3, 0.14),
		sellOffer(2, 2, 0.12),
		buyOffer(3, 4, 0.15),
	}

	res := Match(offers, 7)
	require.Len(t, res.Trades, 2)

	first := res.Trades[0]
	assert.Equal(t, prosumer.ID(2), first.Seller)
	assert.Equal(t, prosumer.ID(3), first.Buyer)
	assert.InDelta(t, 2, first.Quantity, 1e-9)
	assert.InDelta(t, 0.135, first.Price, 1e-9, "midpoint of bid 0.15 and ask 0.12")
	assert.Equal(t, 7, first.Tick)
	assert.Equal(t, VenueP2P, first.Venue)

	second := res.Trades[1]
	assert.Equal(t, prosumer.ID(1), second.Seller)
	assert.InDelta(t, 2, second.Quantity, 1e-9)
	assert.InDelta(t, 0.145, second.Price, 1e-9)

	// Seller 1 keeps 1 kWh for the local market.
	require.Len(t, res.Residuals, 1)
	assert.Equal(t, prosumer.ID(1), res.Residuals[0].Prosumer)
	assert.InDelta(t, 1, res.Residuals[0].Quantity, 1e-9)
}

func TestMatchBidBelowAskNoTrade(t *testing.T) {
	res := Match([]prosumer.Offer{
		sellOffer(1, 2, 0.16),
		buyOffer(2, 2, 0.14),
	}, 0)
	assert.Empty(t, res.Trades)
	assert.Len(t, res.Residuals, 2, "both sides fall through to the local market")
}

func TestMatchSkipsBannedAndDust(t *testing.T) {
	banned := sellOffer(1, 5, 0.10)
	banned.Banned = true
	res := Match([]prosumer.Offer{
		banned,
		sellOffer(2, 0.005, 0.10), // below the executable minimum
		buyOffer(3, 2, 0.15),
	}, 0)
	assert.Empty(t, res.Trades)
	require.Len(t, res.Residuals, 1)
	assert.Equal(t, prosumer.ID(3), res.Residuals[0].Prosumer)
}

func TestMatchOrderIndependent(t *testing.T) {
	base := []prosumer.Offer{
		sellOffer(1, 1.5, 0.13),
		sellOffer(2, 2.0, 0.13), // tie broken by id
		sellOffer(3, 1.0, 0.12),
		buyOffer(4, 2.5, 0.16),
		buyOffer(5, 1.0, 0.16),
		buyOffer(6, 0.5, 0.125),
	}
	want := Match(append([]prosumer.Offer(nil), base...), 0)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]prosumer.Offer(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got := Match(shuffled, 0)

		require.Len(t, got.Trades, len(want.Trades))
		for j := range want.Trades {
			assert.Equal(t, want.Trades[j].Buyer, got.Trades[j].Buyer)
			assert.Equal(t, want.Trades[j].Seller, got.Trades[j].Seller)
			assert.InDelta(t, want.Trades[j].Quantity, got.Trades[j].Quantity, 1e-9)
			assert.InDelta(t, want.Trades[j].Price, got.Trades[j].Price, 1e-9)
		}
	}
}

func TestMatchTradeIDsReplayIdentically(t *testing.T) {
	offers := func() []prosumer.Offer {
		return []prosumer.Offer{
			sellOffer(1, 2, 0.12),
			sellOffer(2, 3, 0.14),
			buyOffer(3, 4, 0.15),
		}
	}

	a := Match(offers(), 3)
	b := Match(offers(), 3)
	require.Len(t, a.Trades, 2)
	require.Len(t, b.Trades, 2)
	for i := range a.Trades {
		assert.Equal(t, a.Trades[i].ID, b.Trades[i].ID,
			"replayed clearing must reuse the same trade ids")
	}
	assert.NotEqual(t, a.Trades[0].ID, a.Trades[1].ID)

	// A different tick yields different ids for the same pairing.
	c := Match(offers(), 4)
	assert.NotEqual(t, a.Trades[0].ID, c.Trades[0].ID)
}

func TestMatchConservesEnergy(t *testing.T) {
	offers := []prosumer.Offer{
		sellOffer(1, 2.2, 0.12),
		sellOffer(2, 1.7, 0.13),
		buyOffer(3, 3.0, 0.16),
		buyOffer(4, 2.0, 0.14),
	}
	res := Match(offers, 0)

	var traded, residual float64
	for _, tr := range res.Trades {
		traded += tr.Quantity
	}
	for _, o := range res.Residuals {
		residual += o.Quantity
	}
	// Every offered kWh is either traded or left as a residual, counted once
	// per side.
	assert.InDelta(t, 2.2+1.7+3.0+2.0, 2*traded+residual, 1e-9)
}
