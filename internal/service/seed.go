package service

import "github.com/dtroode/authkeeper-server/internal/model"

// DemoUsers are the accounts created when SEED_DEMO_USERS is set.
func DemoUsers() []SeedUser {
	return []SeedUser{
		{
			Username: "abdallah",
			Password: "password123",
			Name:     "Abdallah",
			Email:    "abdallah@gmail.com",
			Role:     model.RoleAdmin,
		},
		{
			Username: "zaghloul",
			Password: "password123",
			Name:     "Zaghloul",
			Email:    "zaghloul@gmail.com",
			Role:     model.RoleUser,
		},
	}
}
