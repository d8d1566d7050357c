// models/asset.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Asset lifecycle statuses. pending_for_signature and in_use are reachable
// only through the issuance coordinator; an asset in either of those states
// always carries an assignedUserId, and never otherwise.
const (
	AssetAvailable           = "available"
	AssetPendingForSignature = "pending_for_signature"
	AssetInUse               = "in_use"
	AssetMaintenance         = "maintenance"
	AssetRetired             = "retired"
)

// Asset conditions accepted on create/update.
var AssetConditions = []string{"new", "excellent", "good", "fair", "poor"}

type Asset struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	AssetTag       string              `bson:"assetTag" json:"assetTag"` // business key, e.g. LAP-001, immutable
	Type           string              `bson:"type" json:"type"`
	Brand          string              `bson:"brand" json:"brand"`
	Model          string              `bson:"model" json:"model"`
	SerialNumber   string              `bson:"serialNumber,omitempty" json:"serialNumber,omitempty"`
	Department     string              `bson:"department" json:"department"`
	Location       string              `bson:"location,omitempty" json:"location,omitempty"`
	PurchaseDate   time.Time           `bson:"purchaseDate" json:"purchaseDate"`
	WarrantyExpiry time.Time           `bson:"warrantyExpiry" json:"warrantyExpiry"`
	PurchaseCost   *float64            `bson:"purchaseCost,omitempty" json:"purchaseCost,omitempty"`
	Condition      string              `bson:"condition" json:"condition"`
	Notes          string              `bson:"notes,omitempty" json:"notes,omitempty"`
	Specs          *AssetSpecs         `bson:"specs,omitempty" json:"specs,omitempty"`
	Status         string              `bson:"status" json:"status"`
	AssignedUserID *primitive.ObjectID `bson:"assignedUserId,omitempty" json:"assignedUserId,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// AssetSpecs is a tagged variant over asset subtype. Exactly the sub-struct
// matching Kind is set; everything else stays nil.
type AssetSpecs struct {
	Kind    string        `bson:"kind" json:"kind"` // laptop, server, network_appliance
	Server  *ServerSpecs  `bson:"server,omitempty" json:"server,omitempty"`
	Network *NetworkSpecs `bson:"network,omitempty" json:"network,omitempty"`
}

type ServerSpecs struct {
	OS        string `bson:"os" json:"os"`
	OSVersion string `bson:"osVersion,omitempty" json:"osVersion,omitempty"`
}

type NetworkSpecs struct {
	Kind string `bson:"kind" json:"kind"` // switch, router, firewall, access_point
}

const (
	SpecsLaptop           = "laptop"
	SpecsServer           = "server"
	SpecsNetworkAppliance = "network_appliance"
)
