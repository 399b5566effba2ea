package models

import (
	"log"

	"github.com/mmdatafocus/construct_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{},
		&Project{},
		&Subcontract{},
		&ChangeOrder{},
		&PaymentApplication{},
		&History{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
