package course

import "strings"

// PlaceholderImage is used when no keyword matches.
const PlaceholderImage = "/images/course/default.jpg"

type imageRule struct {
	keywords []string
	url      string
}

// imageRules is matched in order against title and category.
var imageRules = []imageRule{
	{[]string{"요리", "베이킹", "제과", "제빵", "쿠킹", "음식", "반찬", "커피", "바리스타"}, "/images/course/cooking.jpg"},
	{[]string{"그림", "미술", "수채화", "드로잉", "회화", "캘리", "서예", "민화", "일러스트"}, "/images/course/art.jpg"},
	{[]string{"음악", "노래", "합창", "통기타", "우쿨렐레", "피아노", "악기", "오카리나", "드럼"}, "/images/course/music.jpg"},
	{[]string{"컴퓨터", "코딩", "스마트폰", "디지털", "엑셀", "파워포인트", "챗gpt", "인공지능", "프로그래밍", "유튜브", "영상편집"}, "/images/course/computer.jpg"},
	{[]string{"영어", "일본어", "중국어", "외국어", "스페인어", "프랑스어", "독일어", "한국어"}, "/images/course/language.jpg"},
	{[]string{"요가", "필라테스", "운동", "체조", "댄스", "스트레칭", "건강", "걷기", "탁구", "배드민턴"}, "/images/course/exercise.jpg"},
	{[]string{"공예", "뜨개", "목공", "가죽", "도자기", "플라워", "꽃", "비누", "향초", "자수"}, "/images/course/craft.jpg"},
	{[]string{"인문", "역사", "철학", "문학", "독서", "글쓰기", "책", "강연", "인문학"}, "/images/course/humanities.jpg"},
	{[]string{"사진", "카메라"}, "/images/course/photo.jpg"},
	{[]string{"자격증", "취업", "창업", "재테크", "경제", "부동산"}, "/images/course/career.jpg"},
	{[]string{"아동", "어린이", "유아", "키즈", "초등"}, "/images/course/kids.jpg"},
}

// AssignImage returns a deterministic image URL for a course based on
// keywords in its title and category.
func AssignImage(title, category string) string {
	hay := strings.ToLower(title + " " + category)
	for _, r := range imageRules {
		for _, kw := range r.keywords {
			if strings.Contains(hay, kw) {
				return r.url
			}
		}
	}
	return PlaceholderImage
}
