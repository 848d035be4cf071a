//go:build tidal_prototype && !tidal_devboard

package core

const buildVariant = VariantPrototype
