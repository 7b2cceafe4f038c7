// Package cache implements the tiered vector cache: a count-bounded
// in-memory LRU tier, a byte-bounded sqlite-backed persistent tier, and an
// optional remote redis tier. Lookups probe tiers fastest-first and promote
// hits into faster tiers; writes go through every tier.
package cache
