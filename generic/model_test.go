package generic_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-engine/generic"
)

func TestTeam_RoleOf_CoordinatorFirst(t *testing.T) {
	team := generic.Team{CoordinatorID: "c1", Sellers: []generic.UserID{"s1", "c1"}}

	assert.Equal(t, generic.RoleCoordinator, team.RoleOf("c1"))
	assert.Equal(t, generic.RoleSeller, team.RoleOf("s1"))
	assert.Equal(t, generic.RoleNone, team.RoleOf("x"))
	assert.Equal(t, generic.RoleNone, team.RoleOf(""))
}

func TestTeam_MembersDeduplicated(t *testing.T) {
	team := generic.Team{CoordinatorID: "c1", Sellers: []generic.UserID{"s1", "c1", "", "s2", "s1"}}

	assert.Equal(t, []generic.UserID{"c1", "s1", "s2"}, team.Members())
	assert.Equal(t, 3, team.Size())
}

func TestTeamFromConfigJSON(t *testing.T) {
	raw := []byte(`{"team":{"coordinatorId":"c1","sellers":["s1","s2"]},"timezone":"America/Sao_Paulo"}`)

	team, err := generic.TeamFromConfigJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, generic.UserID("c1"), team.CoordinatorID)
	assert.Len(t, team.Sellers, 2)

	_, err = generic.TeamFromConfigJSON(nil)
	assert.ErrorIs(t, err, generic.ErrConfigNotFound)
}

func TestAmountJSON_NumberOrString(t *testing.T) {
	var v struct {
		A generic.Amount `json:"a"`
		B generic.Amount `json:"b"`
		C generic.Amount `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1500.5,"b":"20","c":null}`), &v))

	assert.True(t, v.A.Equal(generic.BRL(1500.5)))
	assert.True(t, v.B.Equal(generic.BRL(20)))
	assert.True(t, v.C.IsZero())

	out, err := json.Marshal(generic.BRL(12.5))
	require.NoError(t, err)
	assert.Equal(t, "12.5", string(out))
}

func TestAmount_ClampAndDivByZero(t *testing.T) {
	assert.True(t, generic.BRL(-3).ClampZero().IsZero())
	assert.True(t, generic.BRL(10).Div(generic.MustParseDecimal("0")).IsZero())
	assert.Equal(t, "0.13 BRL", generic.BRL(0.125).Round2().String())
}

func TestInstagramDay_IncrementCapped(t *testing.T) {
	day := generic.InstagramDay{Posts: generic.InstagramCap - 1}

	day = day.Increment(generic.InstagramPosts, "09:00")
	assert.Equal(t, generic.InstagramCap, day.Posts)
	assert.Equal(t, []string{"09:00"}, day.Times)

	day = day.Increment(generic.InstagramPosts, "09:05")
	assert.Equal(t, generic.InstagramCap, day.Posts, "cap holds")
	assert.Len(t, day.Times, 1, "no stamp when capped")

	day = day.Increment(generic.InstagramStories, "")
	assert.Equal(t, 1, day.Stories)
}

func TestSale_Base(t *testing.T) {
	assert.True(t, generic.Sale{Net: generic.BRL(900), Gross: generic.BRL(1000)}.Base().Equal(generic.BRL(900)))
	assert.True(t, generic.Sale{Gross: generic.BRL(1000)}.Base().Equal(generic.BRL(1000)))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, generic.RoleCoordinator, generic.ParseRole("coordenadora"))
	assert.Equal(t, generic.RoleSeller, generic.ParseRole("vendedora"))
	assert.Equal(t, generic.RoleAdmin, generic.ParseRole("admin"))
	assert.Equal(t, generic.RoleNone, generic.ParseRole("manager"))
}
