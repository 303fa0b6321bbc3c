package models

import "github.com/tallybook/tallybook/internal/common"

// User is a household member who owns transactions.
type User struct {
	Meta

	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// UserSetting is a per-user key/value preference. It is keyed by
// (ownerId, settingKey) rather than by id.
type UserSetting struct {
	Meta

	OwnerID    string `json:"ownerId"`
	SettingKey string `json:"settingKey"`
	Value      string `json:"value"`
}

// Key implements the composite logical key for settings.
func (s UserSetting) Key() (string, error) {
	if s.OwnerID == "" || s.SettingKey == "" {
		return "", common.ErrMalformedRecord
	}
	return s.OwnerID + "/" + s.SettingKey, nil
}
