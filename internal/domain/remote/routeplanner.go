package remote

import (
	"github.com/osa030/lavabox/internal/domain/payload"
)

// RoutePlannerType is the route planner implementation used by the node.
type RoutePlannerType string

const (
	RotatingIPRoutePlanner     RoutePlannerType = "RotatingIpRoutePlanner"
	NanoIPRoutePlanner         RoutePlannerType = "NanoIpRoutePlanner"
	RotatingNanoIPRoutePlanner RoutePlannerType = "RotatingNanoIpRoutePlanner"
	BalancingIPRoutePlanner    RoutePlannerType = "BalancingIpRoutePlanner"
)

// IPBlockType is the address family of an IP block.
type IPBlockType string

const (
	Inet4Address IPBlockType = "Inet4Address"
	Inet6Address IPBlockType = "Inet6Address"
)

// IPBlock is the block of addresses the planner rotates through.
type IPBlock struct {
	Type IPBlockType `json:"type"`
	Size string      `json:"size"`
}

// FailingAddress is an address that was rate limited by a source.
type FailingAddress struct {
	Address   string         `json:"failingAddress"`
	Timestamp payload.Millis `json:"failingTimestamp"`
	Time      string         `json:"failingTime"`
}

// RoutePlannerDetails holds the planner state. Index fields are only filled by
// the planner types that use them.
type RoutePlannerDetails struct {
	IPBlock             IPBlock          `json:"ipBlock"`
	FailingAddresses    []FailingAddress `json:"failingAddresses"`
	RotateIndex         *string          `json:"rotateIndex"`
	IPIndex             *string          `json:"ipIndex"`
	CurrentAddress      *string          `json:"currentAddress"`
	CurrentAddressIndex *string          `json:"currentAddressIndex"`
	BlockIndex          *string          `json:"blockIndex"`
}

// RoutePlannerStatus is the route planner state of a node.
type RoutePlannerStatus struct {
	Class   RoutePlannerType    `json:"class" validate:"required"`
	Details RoutePlannerDetails `json:"details"`
}

// DecodeRoutePlannerStatus builds a RoutePlannerStatus from a raw payload.
func DecodeRoutePlannerStatus(data []byte) (RoutePlannerStatus, error) {
	var s RoutePlannerStatus
	if err := payload.Decode(data, &s); err != nil {
		return RoutePlannerStatus{}, err
	}
	return s, nil
}
