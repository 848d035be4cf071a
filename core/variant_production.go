//go:build !tidal_devboard && !tidal_prototype

package core

const buildVariant = VariantProduction
