// Package fixtures provides test data factories for the Questline API.
//
// # Factory Pattern
//
// Create a factory over a progress store and a directory:
//
//	f := fixtures.New(progressRepo, directoryRepo)
//
// # Creating Test Data
//
//	userID := fixtures.NewUserID()
//	f.CreateCharacter(t, userID, fixtures.WithValue(progression.FieldMoney, 500))
//	guilds := f.CreateGuilds(t, 2)
//	quest := f.CreateQuest(t, guilds, fixtures.WithReward(reward))
//	contract := f.CreateContract(t, userID, quest)
//
// Names and user ids carry a random suffix so tests sharing a database do
// not collide.
package fixtures
