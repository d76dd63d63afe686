// Package profile holds the hour domain of segment expirations and the bulk loader
// for user profiles.
//
// Expiration hours are counted from Epoch (2019-01-01 UTC), see HourOf. A profile is a
// record keyed "u<id>" whose bin Bin holds the segment map.
package profile
