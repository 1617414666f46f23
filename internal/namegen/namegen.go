// Package namegen produces anonymous display names like "Quiet Heron" or
// "Drifting Ember". Names are not unique and are not meant to be.
package namegen

import "math/rand"

var adjectives = []string{
	"Quiet", "Still", "Gentle", "Drifting", "Patient", "Calm",
	"Soft", "Steady", "Slow", "Misty", "Silent", "Warm",
	"Floating", "Restful", "Mellow", "Peaceful",
}

var nouns = []string{
	"Heron", "Ember", "River", "Stone", "Cloud", "Willow",
	"Lantern", "Moss", "Tide", "Fern", "Dune", "Pine",
	"Otter", "Moth", "Reed", "Brook",
}

// Generate returns a random two-word display name.
func Generate() string {
	return adjectives[rand.Intn(len(adjectives))] + " " + nouns[rand.Intn(len(nouns))]
}
