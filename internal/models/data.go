package models

// DataCategory names a collection of participant-collected data
type DataCategory string

const (
	DataAnswers         DataCategory = "answers"
	DataHealthStoreData DataCategory = "healthStoreData"
	DataMiband3         DataCategory = "miband3Data"
	DataQCST            DataCategory = "qcstData"
	DataSMWT            DataCategory = "smwtData"
)

// DataCategories lists every collected-data category in deletion order
var DataCategories = []DataCategory{
	DataAnswers,
	DataHealthStoreData,
	DataMiband3,
	DataQCST,
	DataSMWT,
}
