package logger

import "errors"

// 准备常驻的错误们
var (
	KeyIsNotExisted = errors.New("Key is Not Existed! ")
	KeyIsExisted    = errors.New("Key is Existed! ")

	ValueIsExpired = errors.New("This Value was Expired! ")

	ParameterIsNotAllowed = errors.New("Parameter is Not Allowed! ")

	FileIsNotExist = errors.New("File is not Exist! ")

	// SkipList 使用的错误

	ListIsModified = errors.New("Skip List is Modified! ")
	NoMoreNode     = errors.New("Skip List Has No More Node! ")
	SlotIsReleased = errors.New("Arena Slot is Already Released! ")

	// DumpFile 使用的错误

	RecordIsIllegal    = errors.New("Record Line is Illegal! ")
	DelimiterIsIllegal = errors.New("Delimiter is Illegal! ")
)
