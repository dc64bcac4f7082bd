package models

import (
	"log"

	"bitbucket.org/insurezeal/brokerage_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ReconciliationReport{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
