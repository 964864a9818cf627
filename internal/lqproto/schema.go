package lqproto

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Package is the protobuf package of every lobby and record message.
const Package = "lq"

type fieldSpec struct {
	name     string
	number   int32
	kind     descriptorpb.FieldDescriptorProto_Type
	repeated bool
	typeName string
}

type messageSpec struct {
	name   string
	fields []fieldSpec
	nested []messageSpec
}

func scalar(kind descriptorpb.FieldDescriptorProto_Type) func(string, int32) fieldSpec {
	return func(name string, number int32) fieldSpec {
		return fieldSpec{name: name, number: number, kind: kind}
	}
}

var (
	str   = scalar(descriptorpb.FieldDescriptorProto_TYPE_STRING)
	byt   = scalar(descriptorpb.FieldDescriptorProto_TYPE_BYTES)
	boo   = scalar(descriptorpb.FieldDescriptorProto_TYPE_BOOL)
	u32   = scalar(descriptorpb.FieldDescriptorProto_TYPE_UINT32)
	i32   = scalar(descriptorpb.FieldDescriptorProto_TYPE_INT32)
	f32   = scalar(descriptorpb.FieldDescriptorProto_TYPE_FLOAT)
)

func msg(name string, number int32, typeName string) fieldSpec {
	return fieldSpec{name: name, number: number, kind: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, typeName: typeName}
}

func list(f fieldSpec) fieldSpec {
	f.repeated = true
	return f
}

func message(name string, fields ...fieldSpec) messageSpec {
	return messageSpec{name: name, fields: fields}
}

func (m messageSpec) with(nested ...messageSpec) messageSpec {
	m.nested = append(m.nested, nested...)
	return m
}

// lobbyMessages covers the login handshake and the record list/fetch calls.
var lobbyMessages = []messageSpec{
	message("Wrapper", str("name", 1), byt("data", 2)),
	message("Error", u32("code", 1), list(u32("u32_params", 2)), list(str("str_params", 3)), str("json_param", 4)),
	message("ClientDeviceInfo", str("device_type", 1), str("os", 2), str("os_version", 3), str("browser", 4)),
	message("Account",
		u32("account_id", 1), str("nickname", 2), u32("login_time", 3), u32("logout_time", 4),
		u32("room_id", 5), u32("title", 7), str("signature", 8), str("email", 9),
	),
	message("ReqLogin",
		str("account", 1), str("password", 2), boo("reconnect", 3), msg("device", 4, "ClientDeviceInfo"),
		str("random_key", 5), str("client_version", 6), boo("gen_access_token", 7),
		list(u32("currency_platforms", 8)),
	),
	message("ResLogin",
		msg("error", 1, "Error"), u32("account_id", 2), msg("account", 3, "Account"),
		boo("has_unread_announcement", 5), str("access_token", 6), u32("signup_time", 7),
	),
	message("ReqOauth2Check", u32("type", 1), str("access_token", 2)),
	message("ResOauth2Check", msg("error", 1, "Error"), boo("has_account", 2)),
	message("ReqOauth2Login",
		u32("type", 1), str("access_token", 2), boo("reconnect", 3), msg("device", 4, "ClientDeviceInfo"),
		str("random_key", 5), str("client_version", 6), list(u32("currency_platforms", 8)),
	),
	message("ReqLogout"),
	message("ResLogout", msg("error", 1, "Error")),
	message("ReqGameRecordList", u32("start", 1), u32("count", 2), u32("type", 3)),
	message("ResGameRecordList", msg("error", 1, "Error"), u32("total_count", 2), list(msg("record_list", 3, "RecordGame"))),
	message("AccountLevel", u32("id", 1), u32("score", 2)),
	message("GameMode", u32("mode", 1), boo("ai", 4), str("extendinfo", 5)),
	message("GameMetaData", u32("room_id", 1), u32("mode_id", 2), u32("contest_uid", 3)),
	message("GameConfig", u32("category", 1), msg("mode", 2, "GameMode"), msg("meta", 3, "GameMetaData")),
	message("GameEndResult", list(msg("players", 1, "GameEndResult.PlayerItem"))).with(
		message("PlayerItem",
			u32("seat", 1), i32("total_point", 2), i32("part_point_1", 3), i32("part_point_2", 4),
			i32("grading_score", 5), i32("gold", 6),
		),
	),
	message("RecordGame",
		str("uuid", 1), u32("start_time", 2), u32("end_time", 3), msg("config", 5, "GameConfig"),
		list(msg("accounts", 11, "RecordGame.AccountInfo")), msg("result", 12, "GameEndResult"),
	).with(
		message("AccountInfo",
			u32("account_id", 1), u32("seat", 2), str("nickname", 3), u32("avatar_id", 4),
			u32("title", 6), msg("level", 7, "AccountLevel"), msg("level3", 8, "AccountLevel"),
		),
	),
	message("ReqGameRecord", str("game_uuid", 1), str("client_version_string", 2)),
	message("ResGameRecord",
		msg("error", 1, "Error"), msg("head", 3, "RecordGame"), byt("data", 4), str("data_url", 5),
	),
}

// recordMessages covers the detail container and the common round actions.
// Fields missing here still survive decoding as unknown wire data; the full
// client schema can be loaded with Load.
var recordMessages = []messageSpec{
	message("GameDetailRecords", list(byt("records", 1)), u32("version", 2)),
	message("LiQiSuccess", u32("seat", 1), i32("score", 2), u32("liqibang", 3)),
	message("TingPaiInfo",
		str("tile", 1), boo("haveyi", 2), boo("yiman", 3), u32("count", 4), u32("fu", 5),
		u32("biao_dora_count", 6), boo("yiman_zimo", 7), u32("count_zimo", 8), u32("fu_zimo", 9),
	),
	message("TingPaiDiscardInfo", str("tile", 1), boo("zhenting", 2), list(msg("infos", 3, "TingPaiInfo"))),
	message("GameEnd", list(i32("scores", 1))),
	message("OptionalOperation",
		u32("type", 1), list(str("combination", 2)), list(str("change_tiles", 3)),
		list(u32("change_tile_states", 4)), u32("gap_type", 5),
	),
	message("OptionalOperationList",
		u32("seat", 1), list(msg("operation_list", 2, "OptionalOperation")), u32("time_add", 4), u32("time_fixed", 5),
	),
	message("RecordNewRound",
		u32("chang", 1), u32("ju", 2), u32("ben", 3), list(i32("scores", 4)), u32("liqibang", 5),
		list(str("tiles0", 6)), list(str("tiles1", 7)), list(str("tiles2", 8)), list(str("tiles3", 9)),
		list(msg("tingpai", 10, "TingPaiDiscardInfo")), str("dora", 11), list(str("doras", 12)),
		str("md5", 13), str("paishan", 14), u32("left_tile_count", 15), boo("al", 16),
	),
	message("RecordDealTile",
		u32("seat", 1), str("tile", 2), u32("left_tile_count", 3), msg("operation", 4, "OptionalOperationList"),
		msg("liqi", 5, "LiQiSuccess"),
		list(str("doras", 6)), list(boo("zhenting", 7)), list(msg("tingpais", 8, "TingPaiInfo")),
	),
	message("RecordDiscardTile",
		u32("seat", 1), str("tile", 2), boo("is_liqi", 3), msg("operation", 4, "OptionalOperationList"),
		boo("moqie", 5), list(boo("zhenting", 6)),
		list(msg("tingpais", 7, "TingPaiInfo")), list(str("doras", 8)), boo("is_wliqi", 9),
	),
	message("RecordChiPengGang",
		u32("seat", 1), u32("type", 2), list(str("tiles", 3)), list(u32("froms", 4)),
		msg("liqi", 5, "LiQiSuccess"), list(boo("zhenting", 7)), list(msg("tingpais", 8, "TingPaiInfo")),
	),
	message("RecordAnGangAddGang",
		u32("seat", 1), u32("type", 2), str("tiles", 3), list(str("doras", 6)),
		list(boo("zhenting", 7)), list(msg("tingpais", 8, "TingPaiInfo")),
	),
	message("RecordBaBei",
		u32("seat", 1), list(boo("zhenting", 3)), list(msg("tingpais", 4, "TingPaiInfo")), boo("moqie", 5),
	),
	message("FanInfo", str("name", 1), u32("val", 2), u32("id", 3)),
	message("HuleInfo",
		list(str("hand", 1)), list(str("ming", 2)), str("hu_tile", 3), u32("seat", 4), boo("zimo", 5),
		boo("qinjia", 6), boo("liqi", 7), list(str("doras", 8)), list(str("li_doras", 9)), boo("yiman", 10),
		u32("count", 11), list(msg("fans", 12, "FanInfo")), u32("fu", 13), str("title", 14),
		u32("point_rong", 15), u32("point_zimo_qin", 16), u32("point_zimo_xian", 17), u32("title_id", 18),
		u32("point_sum", 19), u32("dadian", 20),
	),
	message("RecordHule",
		list(msg("hules", 1, "HuleInfo")), list(i32("old_scores", 2)), list(i32("delta_scores", 3)),
		u32("wait_timeout", 4), list(i32("scores", 5)), msg("gameend", 6, "GameEnd"), list(str("doras", 7)),
	),
	message("NoTilePlayerInfo", boo("tingpai", 3), list(str("hand", 4)), list(msg("tings", 5, "TingPaiInfo"))),
	message("NoTileScoreInfo",
		u32("seat", 1), list(i32("old_scores", 2)), list(i32("delta_scores", 3)), list(str("hand", 4)),
		list(str("ming", 5)), list(str("doras", 6)), u32("score", 7),
	),
	message("RecordNoTile",
		boo("liujumanguan", 1), list(msg("players", 2, "NoTilePlayerInfo")),
		list(msg("scores", 3, "NoTileScoreInfo")), boo("gameend", 4),
	),
	message("RecordLiuJu",
		u32("type", 1), msg("gameend", 2, "GameEnd"), u32("seat", 3), list(str("tiles", 4)),
		msg("liqi", 5, "LiQiSuccess"), list(str("allplayertiles", 6)),
	),
	message("RecordGangResult", msg("gang_infos", 1, "ChuanmaGang")),
	message("ChuanmaGang",
		list(i32("old_scores", 1)), list(i32("delta_scores", 2)), list(i32("scores", 3)),
		msg("gameend", 4, "GameEnd"), list(msg("hules_history", 5, "HuleInfo")),
	),
	message("RecordSelectGap", list(u32("gap_types", 1)), list(msg("tingpai", 2, "TingPaiDiscardInfo"))),
	message("RecordChangeTile",
		list(str("doras", 1)), list(msg("tingpai", 2, "TingPaiDiscardInfo")), u32("change_type", 4),
	),
	message("RecordHuleXueZhanMid",
		list(msg("hules", 1, "HuleInfo")), list(i32("old_scores", 2)), list(i32("delta_scores", 3)),
		list(i32("scores", 5)), list(str("doras", 7)), f32("dadian", 8),
	),
}

type methodSpec struct {
	name, input, output string
}

var lobbyMethods = []methodSpec{
	{"login", "ReqLogin", "ResLogin"},
	{"oauth2Check", "ReqOauth2Check", "ResOauth2Check"},
	{"oauth2Login", "ReqOauth2Login", "ResLogin"},
	{"logout", "ReqLogout", "ResLogout"},
	{"fetchGameRecordList", "ReqGameRecordList", "ResGameRecordList"},
	{"fetchGameRecord", "ReqGameRecord", "ResGameRecord"},
}

// FileDescriptorProto returns the lq schema as an unlinked descriptor. It is
// built fresh on every call so callers may extend it before linking.
func FileDescriptorProto() *descriptorpb.FileDescriptorProto {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("lq/liqi.proto"),
		Package: proto.String(Package),
		Syntax:  proto.String("proto3"),
	}
	for _, spec := range lobbyMessages {
		fdp.MessageType = append(fdp.MessageType, spec.descriptor())
	}
	for _, spec := range recordMessages {
		fdp.MessageType = append(fdp.MessageType, spec.descriptor())
	}

	lobby := &descriptorpb.ServiceDescriptorProto{Name: proto.String("Lobby")}
	for _, m := range lobbyMethods {
		lobby.Method = append(lobby.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.name),
			InputType:  proto.String(qualify(m.input)),
			OutputType: proto.String(qualify(m.output)),
		})
	}
	fdp.Service = append(fdp.Service, lobby)
	return fdp
}

func (m messageSpec) descriptor() *descriptorpb.DescriptorProto {
	dp := &descriptorpb.DescriptorProto{Name: proto.String(m.name)}
	for _, f := range m.fields {
		label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
		if f.repeated {
			label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
		}
		fd := &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(f.name),
			Number: proto.Int32(f.number),
			Label:  label.Enum(),
			Type:   f.kind.Enum(),
		}
		if f.typeName != "" {
			fd.TypeName = proto.String(qualify(f.typeName))
		}
		dp.Field = append(dp.Field, fd)
	}
	for _, nested := range m.nested {
		dp.NestedType = append(dp.NestedType, nested.descriptor())
	}
	return dp
}

func qualify(name string) string {
	return "." + Package + "." + name
}
