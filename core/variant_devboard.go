//go:build tidal_devboard

package core

const buildVariant = VariantDevboard
