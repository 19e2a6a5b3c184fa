// Package tiers is the static registry of quota tiers.
//
// Four tiers ship built in (free, economy, standard, premium) with
// strictly increasing limits. A tier bundles daily and hourly caps on
// requests, tokens, and cost, plus a per-request token cap. Tier
// selection happens once at governor construction; an unknown tier name
// is a startup error, never a runtime admission failure.
package tiers
