package sale

import (
	"testing"

	"github.com/stretchr/testify/require"

	"salegate/crypto"
)

func rolesAddr(fill byte) ([20]byte, string) {
	var raw [20]byte
	for i := range raw {
		raw[i] = fill
	}
	return raw, crypto.MustNewAddress(crypto.SalePrefix, raw[:]).String()
}

func TestStaticRolesFromConfig(t *testing.T) {
	ops, opsBech := rolesAddr(0x11)
	pauser, pauserBech := rolesAddr(0x22)

	roles, err := NewStaticRoles(map[string][]string{
		RoleOperations: {opsBech},
		RolePauser:     {pauserBech},
	})
	require.NoError(t, err)

	require.True(t, roles.HasRole(RoleOperations, ops[:]))
	require.True(t, roles.HasRole(RolePauser, pauser[:]))
	require.False(t, roles.HasRole(RoleOperations, pauser[:]))
	require.False(t, roles.HasRole(RoleSaleAdmin, ops[:]))
}

func TestStaticRolesRejectsBadAddress(t *testing.T) {
	_, err := NewStaticRoles(map[string][]string{
		RoleOperations: {"not-a-bech32-address"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), RoleOperations)
}

func TestStaticRolesGrant(t *testing.T) {
	target, _ := rolesAddr(0x33)

	roles := &StaticRoles{}
	require.False(t, roles.HasRole(RoleEmergency, target[:]))

	roles.Grant(RoleEmergency, target)
	require.True(t, roles.HasRole(RoleEmergency, target[:]))
	require.False(t, roles.HasRole(RoleEmergency, target[:19]))

	var nilRoles *StaticRoles
	require.False(t, nilRoles.HasRole(RoleEmergency, target[:]))
}
