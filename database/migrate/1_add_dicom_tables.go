package migrate

import (
	"fmt"

	"github.com/go-pg/migrations"
)

const patientTable = `
CREATE TABLE patient (
id serial NOT NULL,
created_at timestamp with time zone NOT NULL DEFAULT current_timestamp,

patient_id varchar(64) NOT NULL UNIQUE,
patient_name varchar(255),
patient_birth_date varchar(8),
patient_sex varchar(16),

PRIMARY KEY (id)
)`

const studyTable = `
CREATE TABLE study (
id serial NOT NULL,
created_at timestamp with time zone NOT NULL DEFAULT current_timestamp,

study_instance_uid varchar(64) NOT NULL UNIQUE,
patient_id varchar(64) NOT NULL REFERENCES patient (patient_id),
study_date varchar(8),
study_time varchar(16),
study_description varchar(255),
accession_number varchar(16),

PRIMARY KEY (id)
)`

const seriesTable = `
CREATE TABLE series (
id serial NOT NULL,
created_at timestamp with time zone NOT NULL DEFAULT current_timestamp,

series_instance_uid varchar(64) NOT NULL UNIQUE,
study_instance_uid varchar(64) NOT NULL REFERENCES study (study_instance_uid),
modality varchar(16),
series_number varchar(15),
series_description varchar(255),

PRIMARY KEY (id)
)`

const instanceTable = `
CREATE TABLE instance (
id serial NOT NULL,
created_at timestamp with time zone NOT NULL DEFAULT current_timestamp,

sop_instance_uid varchar(64) NOT NULL UNIQUE,
series_instance_uid varchar(64) NOT NULL REFERENCES series (series_instance_uid),
sop_class_uid varchar(64),
instance_number varchar(15),
file_path varchar(1023) NOT NULL,

PRIMARY KEY (id)
)`

const worklistTable = `
CREATE TABLE worklist (
id serial NOT NULL,
created_at timestamp with time zone NOT NULL DEFAULT current_timestamp,
updated_at timestamp with time zone NOT NULL DEFAULT current_timestamp,

patient_id varchar(64) NOT NULL,
patient_name varchar(255),
modality varchar(16) NOT NULL,
accession_number varchar(16),
scheduled_date varchar(8) NOT NULL,
scheduled_time varchar(16),
scheduled_station_ae_title varchar(16),
status varchar(16) NOT NULL DEFAULT 'SCHEDULED',

PRIMARY KEY (id)
)`

func init() {
	up := []string{
		patientTable,
		studyTable,
		seriesTable,
		instanceTable,
		worklistTable,
	}

	down := []string{
		`DROP TABLE worklist`,
		`DROP TABLE instance`,
		`DROP TABLE series`,
		`DROP TABLE study`,
		`DROP TABLE patient`,
	}

	migrations.Register(func(db migrations.DB) error {
		fmt.Println("create tables")
		for _, q := range up {
			_, err := db.Exec(q)
			if err != nil {
				return err
			}
		}
		return nil
	}, func(db migrations.DB) error {
		fmt.Println("drop tables")
		for _, q := range down {
			_, err := db.Exec(q)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
